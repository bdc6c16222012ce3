package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateRequest  = "CREATE_REQUEST"
	ActionCancelRequest  = "CANCEL_REQUEST"
	ActionCopyRequest    = "COPY_REQUEST"
	ActionUpdateItem     = "UPDATE_REQUEST_ITEM"
	ActionAddItem        = "ADD_REQUEST_ITEM"
	ActionRemoveItem     = "REMOVE_REQUEST_ITEM"
	ActionApproveStep    = "APPROVE_STEP"
	ActionRejectRequest  = "REJECT_REQUEST"
	ActionAutoApprove    = "AUTO_APPROVE_REQUEST"
	ActionCreateWorkflow = "CREATE_WORKFLOW"
	ActionUpdateWorkflow = "UPDATE_WORKFLOW"
	ActionCreateProfile  = "CREATE_PROFILE"
	ActionUpdateProfile  = "UPDATE_PROFILE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProfileID  *uuid.UUID `gorm:"type:uuid;index" json:"profile_id"` // Nullable gracefully if automated
	Profile    *Profile   `gorm:"foreignKey:ProfileID" json:"profile"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
