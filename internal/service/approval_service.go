package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/realtime"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Publisher receives row-change events after a transaction commits.
// *realtime.Bus satisfies it; tests substitute a recorder.
type Publisher interface {
	Publish(ev realtime.Event)
}

// --- DTOs ---

// ItemEditDTO carries an approver's in-review edit of one request item.
// Zero quantity marks an item struck from the request.
type ItemEditDTO struct {
	ID       string  `json:"id" binding:"required"`
	Name     string  `json:"name"`
	Quantity *int    `json:"quantity" binding:"omitempty,min=0"`
	Unit     string  `json:"unit"`
	UnitCost *string `json:"unit_cost"`
	Notes    *string `json:"notes"`
}

type ProcessApprovalDTO struct {
	RequestID string        `json:"request_id" binding:"required"`
	StepID    string        `json:"step_id" binding:"required"`
	Decision  string        `json:"decision" binding:"required,oneof=approve reject"`
	Comments  string        `json:"comments"`
	Items     []ItemEditDTO `json:"items"`
}

type ProcessApprovalResult struct {
	Success   bool   `json:"success"`
	NewStatus string `json:"new_status"`
	Message   string `json:"message"`
}

type ApprovalDecisionResponse struct {
	ID           string `json:"id"`
	StepID       string `json:"step_id"`
	StepName     string `json:"step_name,omitempty"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name,omitempty"`
	Decision     string `json:"decision"`
	Comments     string `json:"comments,omitempty"`
	DecidedAt    string `json:"decided_at"`
}

// --- Interface ---

type ApprovalService interface {
	// ProcessApproval applies one decision to one request: authorization,
	// item edits, the append-only audit row and the status transition all
	// commit atomically. The request row is locked for the duration, so a
	// second approver's concurrent decision waits and then fails the
	// current-step check.
	ProcessApproval(ctx context.Context, req ProcessApprovalDTO, approverID uuid.UUID) (ProcessApprovalResult, error)
	ListPendingByRole(ctx context.Context, profileID, roleID uuid.UUID, requestTypeID string, includeItems bool) ([]RequestResponse, error)
	ListDecisions(ctx context.Context, requestID string) ([]ApprovalDecisionResponse, error)
}

type approvalService struct {
	requests  repository.RequestRepository
	approvals repository.ApprovalRepository
	workflows repository.WorkflowRepository
	audits    repository.AuditRepository
	workflow  WorkflowService
	txManager repository.TransactionManager
	publisher Publisher
}

// NewApprovalService returns a new instance of ApprovalService
func NewApprovalService(
	requests repository.RequestRepository,
	approvals repository.ApprovalRepository,
	workflows repository.WorkflowRepository,
	audits repository.AuditRepository,
	workflow WorkflowService,
	txManager repository.TransactionManager,
	publisher Publisher,
) ApprovalService {
	return &approvalService{
		requests:  requests,
		approvals: approvals,
		workflows: workflows,
		audits:    audits,
		workflow:  workflow,
		txManager: txManager,
		publisher: publisher,
	}
}

// --- Implementation ---

func (s *approvalService) ProcessApproval(ctx context.Context, req ProcessApprovalDTO, approverID uuid.UUID) (ProcessApprovalResult, error) {
	const op = "approval.Process"

	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		return ProcessApprovalResult{}, apperr.Validation(op, "invalid request id")
	}
	stepID, err := uuid.Parse(req.StepID)
	if err != nil {
		return ProcessApprovalResult{}, apperr.Validation(op, "invalid step id")
	}

	var result ProcessApprovalResult
	var events []realtime.Event

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, findErr := s.requests.FindByIDForUpdate(txCtx, requestID)
		if findErr != nil {
			return apperr.E(op, apperr.KindNotFound, fmt.Errorf("request not found: %w", findErr))
		}

		// Terminal requests accept no further transitions
		if model.IsTerminalStatus(request.Status) {
			return apperr.Business(op, fmt.Sprintf("request is already %s", request.Status))
		}
		if request.CurrentStepID == nil {
			return apperr.Business(op, "request has no current approval step")
		}
		// The caller decided against a step it loaded earlier; another
		// approver may have advanced the request since. Re-validate.
		if *request.CurrentStepID != stepID {
			return apperr.Business(op, "approval step is out of date, reload the request")
		}

		step, stepErr := s.workflows.FindStep(txCtx, stepID)
		if stepErr != nil {
			return apperr.E(op, apperr.KindNotFound, fmt.Errorf("approval step not found: %w", stepErr))
		}

		allowed, authErr := s.workflow.CanApprove(txCtx, step, approverID)
		if authErr != nil {
			return authErr
		}
		if !allowed {
			return apperr.Unauthorized(op, "not authorized to decide this approval step")
		}

		// Item edits are persisted before the decision row so the audit
		// trail reflects the item state that was actually approved
		for _, edit := range req.Items {
			itemEvents, editErr := s.applyItemEdit(txCtx, request.ID, edit)
			if editErr != nil {
				return editErr
			}
			events = append(events, itemEvents...)
		}

		now := time.Now()
		decision := model.DecisionApproved
		if req.Decision == "reject" {
			decision = model.DecisionRejected
		}

		approval := &model.RequestApproval{
			RequestID:  request.ID,
			StepID:     step.ID,
			ApproverID: approverID,
			Decision:   decision,
			Comments:   req.Comments,
			DecidedAt:  now,
		}
		if createErr := s.approvals.Create(txCtx, approval); createErr != nil {
			return fmt.Errorf("failed to record approval decision: %w", createErr)
		}
		events = append(events, realtime.Event{Table: realtime.TableApprovals, Type: realtime.EventInsert, New: approval})

		action := model.ActionApproveStep
		if decision == model.DecisionRejected {
			action = model.ActionRejectRequest
			request.Status = model.StatusRejected
			request.CurrentStepID = nil
			request.CompletedAt = &now
			result = ProcessApprovalResult{Success: true, NewStatus: model.StatusRejected, Message: "request rejected"}
		} else {
			next, nextErr := s.nextStep(txCtx, request, step)
			if nextErr != nil {
				return nextErr
			}
			if next != nil {
				nextID := next.ID
				request.CurrentStepID = &nextID
				request.Status = model.StatusInProgress
				result = ProcessApprovalResult{Success: true, NewStatus: model.StatusInProgress, Message: fmt.Sprintf("advanced to step %q", next.Name)}
			} else {
				request.Status = model.StatusApproved
				request.CurrentStepID = nil
				request.CompletedAt = &now
				result = ProcessApprovalResult{Success: true, NewStatus: model.StatusApproved, Message: "request fully approved"}
			}
		}

		if updateErr := s.requests.Update(txCtx, request); updateErr != nil {
			return fmt.Errorf("failed to update request: %w", updateErr)
		}
		events = append(events, realtime.Event{Table: realtime.TableRequests, Type: realtime.EventUpdate, New: request})

		details, _ := json.Marshal(map[string]interface{}{
			"decision":   decision,
			"step_id":    step.ID.String(),
			"new_status": request.Status,
		})
		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &approverID,
			Action:     action,
			EntityID:   request.ID.String(),
			EntityName: request.RequestNumber,
			Details:    string(details),
		})
	})

	if err != nil {
		return ProcessApprovalResult{Success: false, Message: err.Error()}, err
	}

	s.publishAll(events)
	return result, nil
}

// nextStep finds the step with the smallest order strictly greater than the
// current one, within the same workflow
func (s *approvalService) nextStep(ctx context.Context, request *model.Request, current *model.ApprovalStep) (*model.ApprovalStep, error) {
	if request.WorkflowID == nil {
		return nil, nil
	}
	steps, err := s.workflows.FindStepsByWorkflow(ctx, *request.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow steps: %w", err)
	}
	wf := model.ApprovalWorkflow{Steps: steps}
	return wf.NextStepAfter(current.StepOrder), nil
}

func (s *approvalService) applyItemEdit(ctx context.Context, requestID uuid.UUID, edit ItemEditDTO) ([]realtime.Event, error) {
	const op = "approval.Process"

	itemID, err := uuid.Parse(edit.ID)
	if err != nil {
		return nil, apperr.Validation(op, "invalid item id")
	}
	item, err := s.requests.FindItem(ctx, itemID)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("item not found: %w", err))
	}
	if item.RequestID != requestID {
		return nil, apperr.Validation(op, "item does not belong to this request")
	}

	if edit.Name != "" {
		item.Name = edit.Name
	}
	if edit.Quantity != nil {
		if *edit.Quantity < 0 {
			return nil, apperr.Validation(op, "quantity must be >= 0")
		}
		item.Quantity = *edit.Quantity
	}
	if edit.Unit != "" {
		item.Unit = edit.Unit
	}
	if edit.UnitCost != nil {
		cost, parseErr := decimal.NewFromString(*edit.UnitCost)
		if parseErr != nil {
			return nil, apperr.Validation(op, "invalid unit_cost")
		}
		item.UnitCost = cost
	}
	if edit.Notes != nil {
		item.Notes = *edit.Notes
	}

	if err := s.requests.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save item edit: %w", err)
	}
	return []realtime.Event{{Table: realtime.TableRequestItems, Type: realtime.EventUpdate, New: item}}, nil
}

func (s *approvalService) ListPendingByRole(ctx context.Context, profileID, roleID uuid.UUID, requestTypeID string, includeItems bool) ([]RequestResponse, error) {
	const op = "approval.ListPending"

	var typeFilter *uuid.UUID
	if requestTypeID != "" {
		parsed, err := uuid.Parse(requestTypeID)
		if err != nil {
			return nil, apperr.Validation(op, "invalid request type filter")
		}
		typeFilter = &parsed
	}

	requests, err := s.requests.PendingByApprover(ctx, profileID, roleID, typeFilter, includeItems)
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransient, err)
	}

	res := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		res = append(res, toRequestResponse(&requests[i]))
	}
	return res, nil
}

func (s *approvalService) ListDecisions(ctx context.Context, requestID string) ([]ApprovalDecisionResponse, error) {
	const op = "approval.ListDecisions"

	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, apperr.Validation(op, "invalid request id")
	}

	decisions, err := s.approvals.ListByRequest(ctx, id)
	if err != nil {
		return nil, apperr.E(op, apperr.KindTransient, err)
	}

	res := make([]ApprovalDecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		item := ApprovalDecisionResponse{
			ID:         d.ID.String(),
			StepID:     d.StepID.String(),
			ApproverID: d.ApproverID.String(),
			Decision:   d.Decision,
			Comments:   d.Comments,
			DecidedAt:  d.DecidedAt.Format(time.RFC3339),
		}
		if d.Step != nil {
			item.StepName = d.Step.Name
		}
		if d.Approver != nil {
			item.ApproverName = d.Approver.DisplayName
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *approvalService) publishAll(events []realtime.Event) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		s.publisher.Publish(ev)
	}
}
