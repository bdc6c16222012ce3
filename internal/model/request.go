package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request status lifecycle. Transitions only move forward:
// pending -> in_progress -> approved, or pending/in_progress -> rejected,
// or pending -> cancelled. Terminal statuses are never left.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
)

// Request priority levels
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// IsTerminalStatus reports whether a request in this status accepts no
// further transitions.
func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected || status == StatusCancelled
}

// ValidPriority reports whether the given priority is one of the four levels.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh || p == PriorityUrgent
}

// RequestType categorizes supply requests (stationery, furniture, lab
// equipment...). Workflows are configured per (request type, submitter role).
type RequestType struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Request is a staff supply requisition moving through an approval workflow.
// CurrentStepID is non-null iff the status is pending or in_progress.
type Request struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestNumber string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"request_number"`
	Title         string    `gorm:"type:varchar(255);not null" json:"title"`
	Purpose       string    `gorm:"type:text" json:"purpose"`
	Priority      string    `gorm:"type:varchar(10);not null;default:'medium';index" json:"priority"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	RequesterID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester     *Profile     `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	RequestTypeID uuid.UUID    `gorm:"type:uuid;not null;index" json:"request_type_id"`
	RequestType   *RequestType `gorm:"foreignKey:RequestTypeID" json:"request_type,omitempty"`

	WorkflowID    *uuid.UUID        `gorm:"type:uuid;index" json:"workflow_id"`
	Workflow      *ApprovalWorkflow `gorm:"foreignKey:WorkflowID" json:"workflow,omitempty"`
	CurrentStepID *uuid.UUID        `gorm:"type:uuid;index" json:"current_step_id"`
	CurrentStep   *ApprovalStep     `gorm:"foreignKey:CurrentStepID" json:"current_step,omitempty"`

	RequestedDate      *time.Time `json:"requested_date"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason,omitempty"`

	Items []RequestItem `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// EstimatedTotal sums unit cost x quantity across items.
func (r *Request) EstimatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// RequestItem is a single line of a requisition. Quantity zero marks an item
// struck from the request during review rather than a deleted row.
type RequestItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity  int             `gorm:"not null;check:quantity >= 0" json:"quantity"`
	Unit      string          `gorm:"type:varchar(50)" json:"unit"`
	UnitCost  decimal.Decimal `gorm:"type:numeric(14,4);default:0" json:"unit_cost"`
	Notes     string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
