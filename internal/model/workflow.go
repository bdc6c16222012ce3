package model

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalWorkflow defines the ordered approval chain that applies to
// requests of a given type submitted by a given role. Step orders within one
// workflow are unique; the first step is the minimum order.
type ApprovalWorkflow struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string       `gorm:"type:varchar(255);not null" json:"name"`
	RequestTypeID uuid.UUID    `gorm:"type:uuid;not null;index:idx_workflow_applicability" json:"request_type_id"`
	RequestType   *RequestType `gorm:"foreignKey:RequestTypeID" json:"request_type,omitempty"`
	RoleID        uuid.UUID    `gorm:"type:uuid;not null;index:idx_workflow_applicability" json:"role_id"`
	Role          *Role        `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsActive      bool         `gorm:"default:true;index" json:"is_active"`

	Steps []ApprovalStep `gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstStep returns the step with the minimum order, or nil if the workflow
// has no steps.
func (w *ApprovalWorkflow) FirstStep() *ApprovalStep {
	var first *ApprovalStep
	for i := range w.Steps {
		if first == nil || w.Steps[i].StepOrder < first.StepOrder {
			first = &w.Steps[i]
		}
	}
	return first
}

// NextStepAfter returns the step with the smallest order strictly greater
// than the given order, or nil if the given step was the last one.
func (w *ApprovalWorkflow) NextStepAfter(order int) *ApprovalStep {
	var next *ApprovalStep
	for i := range w.Steps {
		if w.Steps[i].StepOrder <= order {
			continue
		}
		if next == nil || w.Steps[i].StepOrder < next.StepOrder {
			next = &w.Steps[i]
		}
	}
	return next
}

// ApprovalStep is one stop in a workflow. The required approver is either a
// specific person (ApproverProfileID) or any holder of a role
// (ApproverRoleID). A person-scoped step ignores roles entirely; a step with
// neither is never approvable.
type ApprovalStep struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WorkflowID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_workflow_step_order" json:"workflow_id"`
	StepOrder  int       `gorm:"not null;uniqueIndex:idx_workflow_step_order" json:"step_order"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`

	ApproverProfileID *uuid.UUID `gorm:"type:uuid;index" json:"approver_profile_id"`
	ApproverProfile   *Profile   `gorm:"foreignKey:ApproverProfileID" json:"approver_profile,omitempty"`
	ApproverRoleID    *uuid.UUID `gorm:"type:uuid;index" json:"approver_role_id"`
	ApproverRole      *Role      `gorm:"foreignKey:ApproverRoleID" json:"approver_role,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
