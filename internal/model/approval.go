package model

import (
	"time"

	"github.com/google/uuid"
)

// Approval decisions
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// RequestApproval is one recorded decision at one workflow step. Rows are
// append-only: never updated, never deleted. One row exists per decision.
type RequestApproval struct {
	ID        uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID     `gorm:"type:uuid;not null;index" json:"request_id"`
	Request   *Request      `gorm:"foreignKey:RequestID" json:"-"`
	StepID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"step_id"`
	Step      *ApprovalStep `gorm:"foreignKey:StepID" json:"step,omitempty"`
	ApproverID uuid.UUID    `gorm:"type:uuid;not null;index" json:"approver_id"`
	Approver   *Profile     `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`

	Decision  string    `gorm:"type:varchar(10);not null" json:"decision"` // approved | rejected
	Comments  string    `gorm:"type:text" json:"comments,omitempty"`
	DecidedAt time.Time `gorm:"not null" json:"decided_at"`
	CreatedAt time.Time `json:"created_at"`
}
