package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateStepDTO struct {
	StepOrder         int     `json:"step_order" binding:"required,min=1"`
	Name              string  `json:"name" binding:"required"`
	ApproverProfileID *string `json:"approver_profile_id"`
	ApproverRoleID    *string `json:"approver_role_id"`
}

type CreateWorkflowDTO struct {
	Name          string          `json:"name" binding:"required"`
	RequestTypeID string          `json:"request_type_id" binding:"required"`
	RoleID        string          `json:"role_id" binding:"required"`
	Steps         []CreateStepDTO `json:"steps" binding:"required,min=1,dive"`
}

type WorkflowStepResponse struct {
	ID                string  `json:"id"`
	StepOrder         int     `json:"step_order"`
	Name              string  `json:"name"`
	ApproverProfileID *string `json:"approver_profile_id"`
	ApproverRoleID    *string `json:"approver_role_id"`
}

type WorkflowResponse struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	RequestTypeID   string                 `json:"request_type_id"`
	RequestTypeName string                 `json:"request_type_name,omitempty"`
	RoleID          string                 `json:"role_id"`
	RoleName        string                 `json:"role_name,omitempty"`
	IsActive        bool                   `json:"is_active"`
	Steps           []WorkflowStepResponse `json:"steps"`
	CreatedAt       string                 `json:"created_at"`
}

// WorkflowAssignment is the outcome of resolving a workflow for a new
// request: either the first step of a matching workflow, or immediate
// auto-approval when none applies.
type WorkflowAssignment struct {
	WorkflowID    *uuid.UUID
	CurrentStepID *uuid.UUID
	Status        string // pending | approved
}

// --- Interface ---

type WorkflowService interface {
	// AssignWorkflow decides whether an approval workflow applies to a new
	// request of the given type submitted by the given role. Missing or
	// empty configuration, and any lookup error, auto-approve: missing
	// configuration must never block submission.
	AssignWorkflow(ctx context.Context, requestTypeID, roleID uuid.UUID) WorkflowAssignment
	// CanApprove decides whether the user may record a decision at the
	// step. A designated person excludes everyone else regardless of role;
	// otherwise the user's current role must equal the required role.
	CanApprove(ctx context.Context, step *model.ApprovalStep, userID uuid.UUID) (bool, error)

	ListWorkflows(ctx context.Context, page, limit int) ([]WorkflowResponse, int64, error)
	GetWorkflow(ctx context.Context, id string) (*WorkflowResponse, error)
	CreateWorkflow(ctx context.Context, req CreateWorkflowDTO, actorID uuid.UUID) (*WorkflowResponse, error)
	SetWorkflowActive(ctx context.Context, id string, active bool, actorID uuid.UUID) (*WorkflowResponse, error)
}

type workflowService struct {
	workflows repository.WorkflowRepository
	profiles  repository.ProfileRepository
	audits    repository.AuditRepository
	txManager repository.TransactionManager
}

// NewWorkflowService returns a new instance of WorkflowService
func NewWorkflowService(
	workflows repository.WorkflowRepository,
	profiles repository.ProfileRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
) WorkflowService {
	return &workflowService{
		workflows: workflows,
		profiles:  profiles,
		audits:    audits,
		txManager: txManager,
	}
}

// --- Implementation ---

func (s *workflowService) AssignWorkflow(ctx context.Context, requestTypeID, roleID uuid.UUID) WorkflowAssignment {
	autoApprove := WorkflowAssignment{Status: model.StatusApproved}

	wf, err := s.workflows.FindActive(ctx, requestTypeID, roleID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("workflow lookup failed for type=%s role=%s, auto-approving: %v", requestTypeID, roleID, err)
		}
		return autoApprove
	}

	first := wf.FirstStep()
	if first == nil {
		// A configured workflow with zero steps behaves as no workflow
		return autoApprove
	}

	wfID := wf.ID
	stepID := first.ID
	return WorkflowAssignment{
		WorkflowID:    &wfID,
		CurrentStepID: &stepID,
		Status:        model.StatusPending,
	}
}

func (s *workflowService) CanApprove(ctx context.Context, step *model.ApprovalStep, userID uuid.UUID) (bool, error) {
	if step == nil {
		return false, nil
	}

	// Person-scoped step: only the designated approver, regardless of role
	if step.ApproverProfileID != nil {
		return *step.ApproverProfileID == userID, nil
	}

	// Role-scoped step: the user's role at decision time must match, so a
	// role reassignment takes effect immediately for pending approvals
	if step.ApproverRoleID != nil {
		profile, err := s.profiles.GetByID(ctx, userID)
		if err != nil {
			return false, apperr.E("workflow.CanApprove", apperr.KindNotFound, fmt.Errorf("profile lookup: %w", err))
		}
		return profile.RoleID == *step.ApproverRoleID, nil
	}

	// Neither a person nor a role: never approvable
	return false, nil
}

func (s *workflowService) ListWorkflows(ctx context.Context, page, limit int) ([]WorkflowResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	workflows, total, err := s.workflows.List(ctx, page, limit)
	if err != nil {
		return nil, 0, apperr.E("workflow.List", apperr.KindTransient, err)
	}

	res := make([]WorkflowResponse, 0, len(workflows))
	for i := range workflows {
		res = append(res, toWorkflowResponse(&workflows[i]))
	}
	return res, total, nil
}

func (s *workflowService) GetWorkflow(ctx context.Context, id string) (*WorkflowResponse, error) {
	wfID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("workflow.Get", "invalid workflow id")
	}

	wf, err := s.workflows.FindByID(ctx, wfID)
	if err != nil {
		return nil, apperr.E("workflow.Get", apperr.KindNotFound, fmt.Errorf("workflow not found: %w", err))
	}

	res := toWorkflowResponse(wf)
	return &res, nil
}

func (s *workflowService) CreateWorkflow(ctx context.Context, req CreateWorkflowDTO, actorID uuid.UUID) (*WorkflowResponse, error) {
	requestTypeID, err := uuid.Parse(req.RequestTypeID)
	if err != nil {
		return nil, apperr.Validation("workflow.Create", "invalid request_type_id")
	}
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		return nil, apperr.Validation("workflow.Create", "invalid role_id")
	}

	steps, err := buildSteps(req.Steps)
	if err != nil {
		return nil, err
	}

	wf := &model.ApprovalWorkflow{
		Name:          req.Name,
		RequestTypeID: requestTypeID,
		RoleID:        roleID,
		IsActive:      true,
		Steps:         steps,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.workflows.Create(txCtx, wf); createErr != nil {
			return fmt.Errorf("failed to create workflow: %w", createErr)
		}
		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &actorID,
			Action:     model.ActionCreateWorkflow,
			EntityID:   wf.ID.String(),
			EntityName: wf.Name,
			Details:    fmt.Sprintf(`{"steps":%d}`, len(wf.Steps)),
		})
	})
	if err != nil {
		return nil, apperr.E("workflow.Create", apperr.KindTransient, err)
	}

	created, err := s.workflows.FindByID(ctx, wf.ID)
	if err != nil {
		return nil, apperr.E("workflow.Create", apperr.KindTransient, fmt.Errorf("failed to reload workflow: %w", err))
	}
	res := toWorkflowResponse(created)
	return &res, nil
}

func (s *workflowService) SetWorkflowActive(ctx context.Context, id string, active bool, actorID uuid.UUID) (*WorkflowResponse, error) {
	wfID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("workflow.SetActive", "invalid workflow id")
	}

	wf, err := s.workflows.FindByID(ctx, wfID)
	if err != nil {
		return nil, apperr.E("workflow.SetActive", apperr.KindNotFound, fmt.Errorf("workflow not found: %w", err))
	}

	wf.IsActive = active
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.workflows.Update(txCtx, wf); updateErr != nil {
			return fmt.Errorf("failed to update workflow: %w", updateErr)
		}
		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &actorID,
			Action:     model.ActionUpdateWorkflow,
			EntityID:   wf.ID.String(),
			EntityName: wf.Name,
			Details:    fmt.Sprintf(`{"is_active":%t}`, active),
		})
	})
	if err != nil {
		return nil, apperr.E("workflow.SetActive", apperr.KindTransient, err)
	}

	res := toWorkflowResponse(wf)
	return &res, nil
}

// --- Helpers ---

func buildSteps(dtos []CreateStepDTO) ([]model.ApprovalStep, error) {
	seen := make(map[int]bool, len(dtos))
	steps := make([]model.ApprovalStep, 0, len(dtos))
	for _, dto := range dtos {
		if seen[dto.StepOrder] {
			return nil, apperr.Validation("workflow.Create", fmt.Sprintf("duplicate step order %d", dto.StepOrder))
		}
		seen[dto.StepOrder] = true

		step := model.ApprovalStep{
			StepOrder: dto.StepOrder,
			Name:      dto.Name,
		}
		if dto.ApproverProfileID != nil && *dto.ApproverProfileID != "" {
			parsed, err := uuid.Parse(*dto.ApproverProfileID)
			if err != nil {
				return nil, apperr.Validation("workflow.Create", "invalid approver_profile_id")
			}
			step.ApproverProfileID = &parsed
		}
		if dto.ApproverRoleID != nil && *dto.ApproverRoleID != "" {
			parsed, err := uuid.Parse(*dto.ApproverRoleID)
			if err != nil {
				return nil, apperr.Validation("workflow.Create", "invalid approver_role_id")
			}
			step.ApproverRoleID = &parsed
		}
		if step.ApproverProfileID == nil && step.ApproverRoleID == nil {
			return nil, apperr.Validation("workflow.Create", fmt.Sprintf("step %d needs an approver person or role", dto.StepOrder))
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func toWorkflowResponse(wf *model.ApprovalWorkflow) WorkflowResponse {
	res := WorkflowResponse{
		ID:            wf.ID.String(),
		Name:          wf.Name,
		RequestTypeID: wf.RequestTypeID.String(),
		RoleID:        wf.RoleID.String(),
		IsActive:      wf.IsActive,
		CreatedAt:     wf.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if wf.RequestType != nil {
		res.RequestTypeName = wf.RequestType.Name
	}
	if wf.Role != nil {
		res.RoleName = wf.Role.Name
	}
	for _, step := range wf.Steps {
		sr := WorkflowStepResponse{
			ID:        step.ID.String(),
			StepOrder: step.StepOrder,
			Name:      step.Name,
		}
		if step.ApproverProfileID != nil {
			v := step.ApproverProfileID.String()
			sr.ApproverProfileID = &v
		}
		if step.ApproverRoleID != nil {
			v := step.ApproverRoleID.String()
			sr.ApproverRoleID = &v
		}
		res.Steps = append(res.Steps, sr)
	}
	return res
}
