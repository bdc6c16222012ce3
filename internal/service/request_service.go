package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/realtime"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/pkg/apperr"
	"github.com/Dat3K/viet-anh-supply-be/pkg/backoff"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateItemDTO struct {
	Name     string `json:"name" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Unit     string `json:"unit"`
	UnitCost string `json:"unit_cost"`
	Notes    string `json:"notes"`
}

type CreateRequestDTO struct {
	Title         string          `json:"title" binding:"required,max=255"`
	Purpose       string          `json:"purpose"`
	Priority      string          `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	RequestTypeID string          `json:"request_type_id" binding:"required"`
	RequestedDate *time.Time      `json:"requested_date"`
	Items         []CreateItemDTO `json:"items" binding:"required,min=1,dive"`
}

type CancelRequestDTO struct {
	Reason string `json:"reason" binding:"required"`
}

type RequestItemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit,omitempty"`
	UnitCost string `json:"unit_cost"`
	Notes    string `json:"notes,omitempty"`
}

type RequestResponse struct {
	ID              string                `json:"id"`
	RequestNumber   string                `json:"request_number"`
	Title           string                `json:"title"`
	Purpose         string                `json:"purpose,omitempty"`
	Priority        string                `json:"priority"`
	Status          string                `json:"status"`
	RequesterID     string                `json:"requester_id"`
	RequesterName   string                `json:"requester_name,omitempty"`
	RequestTypeID   string                `json:"request_type_id"`
	RequestTypeName string                `json:"request_type_name,omitempty"`
	WorkflowID      string                `json:"workflow_id,omitempty"`
	CurrentStepID   string                `json:"current_step_id,omitempty"`
	CurrentStepName string                `json:"current_step_name,omitempty"`
	RequestedDate   *time.Time            `json:"requested_date,omitempty"`
	EstimatedTotal  string                `json:"estimated_total"`
	Items           []RequestItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
}

// --- Interface ---

type RequestService interface {
	// CreateRequest files a new supply request: reserves a request number,
	// resolves the approval workflow for (type, submitter role) and creates
	// the request with its items in one transaction. When no workflow
	// matches, the request is created already approved.
	CreateRequest(ctx context.Context, req CreateRequestDTO, requesterID, requesterRoleID uuid.UUID) (*RequestResponse, error)
	GetRequest(ctx context.Context, id string) (*RequestResponse, error)
	History(ctx context.Context, requesterID uuid.UUID, filter repository.HistoryFilter) ([]RequestResponse, int64, error)
	CancelRequest(ctx context.Context, id string, req CancelRequestDTO, callerID uuid.UUID) (*RequestResponse, error)
	// CopyRequest files a fresh request duplicating an existing one's
	// title, purpose, priority, type and items. Workflow assignment and
	// numbering run anew; the copy starts from pending.
	CopyRequest(ctx context.Context, id string, callerID, callerRoleID uuid.UUID) (*RequestResponse, error)

	AddItem(ctx context.Context, requestID string, item CreateItemDTO, callerID uuid.UUID) (*RequestResponse, error)
	UpdateItem(ctx context.Context, requestID string, edit ItemEditDTO, callerID uuid.UUID) (*RequestResponse, error)
	RemoveItem(ctx context.Context, requestID, itemID string, callerID uuid.UUID) (*RequestResponse, error)
}

type requestService struct {
	requests  repository.RequestRepository
	types     repository.RequestTypeRepository
	audits    repository.AuditRepository
	workflow  WorkflowService
	txManager repository.TransactionManager
	publisher Publisher
	retry     backoff.Policy
}

// NewRequestService returns a new instance of RequestService
func NewRequestService(
	requests repository.RequestRepository,
	types repository.RequestTypeRepository,
	audits repository.AuditRepository,
	workflow WorkflowService,
	txManager repository.TransactionManager,
	publisher Publisher,
) RequestService {
	return &requestService{
		requests:  requests,
		types:     types,
		audits:    audits,
		workflow:  workflow,
		txManager: txManager,
		publisher: publisher,
		retry:     backoff.Default(),
	}
}

// --- Implementation ---

func (s *requestService) CreateRequest(ctx context.Context, req CreateRequestDTO, requesterID, requesterRoleID uuid.UUID) (*RequestResponse, error) {
	const op = "request.Create"

	typeID, err := uuid.Parse(req.RequestTypeID)
	if err != nil {
		return nil, apperr.Validation(op, "invalid request_type_id")
	}
	if _, err := s.types.FindByID(ctx, typeID); err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("request type not found: %w", err))
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, apperr.Validation(op, "invalid priority")
	}

	items, err := buildItems(req.Items)
	if err != nil {
		return nil, apperr.E(op, apperr.KindValidation, err)
	}

	var request *model.Request
	var events []realtime.Event

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, seqErr := s.nextRequestNumber(txCtx)
		if seqErr != nil {
			return seqErr
		}

		// Workflow resolution never blocks creation: failures fall back
		// to immediate approval.
		assignment := s.workflow.AssignWorkflow(txCtx, typeID, requesterRoleID)

		now := time.Now()
		request = &model.Request{
			RequestNumber: number,
			Title:         req.Title,
			Purpose:       req.Purpose,
			Priority:      priority,
			Status:        assignment.Status,
			RequesterID:   requesterID,
			RequestTypeID: typeID,
			WorkflowID:    assignment.WorkflowID,
			CurrentStepID: assignment.CurrentStepID,
			RequestedDate: req.RequestedDate,
		}
		if model.IsTerminalStatus(assignment.Status) {
			request.CompletedAt = &now
		}
		if createErr := s.requests.Create(txCtx, request); createErr != nil {
			return fmt.Errorf("failed to create request: %w", createErr)
		}

		for i := range items {
			items[i].RequestID = request.ID
		}
		if createErr := s.requests.CreateItems(txCtx, items); createErr != nil {
			return fmt.Errorf("failed to create request items: %w", createErr)
		}
		request.Items = items

		events = append(events, realtime.Event{Table: realtime.TableRequests, Type: realtime.EventInsert, New: request})
		for i := range items {
			events = append(events, realtime.Event{Table: realtime.TableRequestItems, Type: realtime.EventInsert, New: &items[i]})
		}

		details, _ := json.Marshal(map[string]interface{}{
			"request_number": number,
			"status":         request.Status,
			"item_count":     len(items),
		})
		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &requesterID,
			Action:     model.ActionCreateRequest,
			EntityID:   request.ID.String(),
			EntityName: number,
			Details:    string(details),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(events)
	res := toRequestResponse(request)
	return &res, nil
}

// nextRequestNumber issues numbers of the form REQ-20260831-00042, sequential
// within the day.
func (s *requestService) nextRequestNumber(ctx context.Context) (string, error) {
	prefix := "REQ-" + time.Now().Format("20060102") + "-"
	seq, err := s.requests.NextSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to reserve request number: %w", err)
	}
	return fmt.Sprintf("%s%05d", prefix, seq), nil
}

func (s *requestService) GetRequest(ctx context.Context, id string) (*RequestResponse, error) {
	const op = "request.Get"

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid request id")
	}

	var request *model.Request
	err = s.retry.Retry(ctx, func() error {
		var findErr error
		request, findErr = s.requests.FindByIDWithRelations(ctx, requestID)
		if findErr != nil {
			return apperr.E(op, apperr.KindTransient, findErr)
		}
		return nil
	}, apperr.Retryable)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("request not found: %w", err))
	}

	res := toRequestResponse(request)
	return &res, nil
}

func (s *requestService) History(ctx context.Context, requesterID uuid.UUID, filter repository.HistoryFilter) ([]RequestResponse, int64, error) {
	const op = "request.History"

	var requests []model.Request
	var total int64
	err := s.retry.Retry(ctx, func() error {
		var listErr error
		requests, total, listErr = s.requests.History(ctx, requesterID, filter)
		if listErr != nil {
			return apperr.E(op, apperr.KindTransient, listErr)
		}
		return nil
	}, apperr.Retryable)
	if err != nil {
		return nil, 0, err
	}

	res := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		res = append(res, toRequestResponse(&requests[i]))
	}
	return res, total, nil
}

func (s *requestService) CancelRequest(ctx context.Context, id string, req CancelRequestDTO, callerID uuid.UUID) (*RequestResponse, error) {
	const op = "request.Cancel"

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid request id")
	}

	var request *model.Request
	var events []realtime.Event

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		request, findErr = s.requests.FindByIDForUpdate(txCtx, requestID)
		if findErr != nil {
			return apperr.E(op, apperr.KindNotFound, fmt.Errorf("request not found: %w", findErr))
		}
		if request.RequesterID != callerID {
			return apperr.Unauthorized(op, "only the requester can cancel a request")
		}
		// Once an approver has acted the request is no longer the
		// requester's to withdraw
		if request.Status != model.StatusPending {
			return apperr.Business(op, fmt.Sprintf("cannot cancel a request in status %s", request.Status))
		}

		now := time.Now()
		request.Status = model.StatusCancelled
		request.CurrentStepID = nil
		request.CancellationReason = req.Reason
		request.CompletedAt = &now
		if updateErr := s.requests.Update(txCtx, request); updateErr != nil {
			return fmt.Errorf("failed to cancel request: %w", updateErr)
		}
		events = append(events, realtime.Event{Table: realtime.TableRequests, Type: realtime.EventUpdate, New: request})

		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &callerID,
			Action:     model.ActionCancelRequest,
			EntityID:   request.ID.String(),
			EntityName: request.RequestNumber,
			Details:    fmt.Sprintf(`{"reason":%q}`, req.Reason),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(events)
	res := toRequestResponse(request)
	return &res, nil
}

func (s *requestService) CopyRequest(ctx context.Context, id string, callerID, callerRoleID uuid.UUID) (*RequestResponse, error) {
	const op = "request.Copy"

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid request id")
	}
	source, err := s.requests.FindByIDWithRelations(ctx, requestID)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("request not found: %w", err))
	}
	if source.RequesterID != callerID {
		return nil, apperr.Unauthorized(op, "only the requester can copy a request")
	}

	dto := CreateRequestDTO{
		Title:         source.Title,
		Purpose:       source.Purpose,
		Priority:      source.Priority,
		RequestTypeID: source.RequestTypeID.String(),
		Items:         make([]CreateItemDTO, 0, len(source.Items)),
	}
	for _, item := range source.Items {
		// Items struck during review stay behind
		if item.Quantity == 0 {
			continue
		}
		dto.Items = append(dto.Items, CreateItemDTO{
			Name:     item.Name,
			Quantity: item.Quantity,
			Unit:     item.Unit,
			UnitCost: item.UnitCost.String(),
			Notes:    item.Notes,
		})
	}
	if len(dto.Items) == 0 {
		return nil, apperr.Business(op, "request has no items left to copy")
	}

	copied, err := s.CreateRequest(ctx, dto, callerID, callerRoleID)
	if err != nil {
		return nil, err
	}

	// The copy itself is already committed; a failed trail entry must not
	// undo it, but it must not vanish silently either.
	details, _ := json.Marshal(map[string]string{"copied_from": source.RequestNumber})
	if logErr := s.audits.Log(ctx, &model.AuditLog{
		ProfileID:  &callerID,
		Action:     model.ActionCopyRequest,
		EntityID:   copied.ID,
		EntityName: copied.RequestNumber,
		Details:    string(details),
	}); logErr != nil {
		log.Printf("request: audit entry for copy of %s failed: %v", source.RequestNumber, logErr)
	}
	return copied, nil
}

func (s *requestService) AddItem(ctx context.Context, requestID string, item CreateItemDTO, callerID uuid.UUID) (*RequestResponse, error) {
	const op = "request.AddItem"

	return s.mutateOwnItems(ctx, op, requestID, callerID, func(txCtx context.Context, request *model.Request) ([]realtime.Event, string, error) {
		items, err := buildItems([]CreateItemDTO{item})
		if err != nil {
			return nil, "", apperr.E(op, apperr.KindValidation, err)
		}
		items[0].RequestID = request.ID
		if err := s.requests.CreateItems(txCtx, items); err != nil {
			return nil, "", fmt.Errorf("failed to add item: %w", err)
		}
		return []realtime.Event{{Table: realtime.TableRequestItems, Type: realtime.EventInsert, New: &items[0]}},
			model.ActionAddItem, nil
	})
}

func (s *requestService) UpdateItem(ctx context.Context, requestID string, edit ItemEditDTO, callerID uuid.UUID) (*RequestResponse, error) {
	const op = "request.UpdateItem"

	return s.mutateOwnItems(ctx, op, requestID, callerID, func(txCtx context.Context, request *model.Request) ([]realtime.Event, string, error) {
		itemID, err := uuid.Parse(edit.ID)
		if err != nil {
			return nil, "", apperr.Validation(op, "invalid item id")
		}
		item, err := s.requests.FindItem(txCtx, itemID)
		if err != nil {
			return nil, "", apperr.E(op, apperr.KindNotFound, fmt.Errorf("item not found: %w", err))
		}
		if item.RequestID != request.ID {
			return nil, "", apperr.Validation(op, "item does not belong to this request")
		}

		if edit.Name != "" {
			item.Name = edit.Name
		}
		if edit.Quantity != nil {
			if *edit.Quantity < 0 {
				return nil, "", apperr.Validation(op, "quantity must be >= 0")
			}
			item.Quantity = *edit.Quantity
		}
		if edit.Unit != "" {
			item.Unit = edit.Unit
		}
		if edit.UnitCost != nil {
			cost, parseErr := decimal.NewFromString(*edit.UnitCost)
			if parseErr != nil {
				return nil, "", apperr.Validation(op, "invalid unit_cost")
			}
			item.UnitCost = cost
		}
		if edit.Notes != nil {
			item.Notes = *edit.Notes
		}

		if err := s.requests.SaveItem(txCtx, item); err != nil {
			return nil, "", fmt.Errorf("failed to update item: %w", err)
		}
		return []realtime.Event{{Table: realtime.TableRequestItems, Type: realtime.EventUpdate, New: item}},
			model.ActionUpdateItem, nil
	})
}

func (s *requestService) RemoveItem(ctx context.Context, requestID, itemID string, callerID uuid.UUID) (*RequestResponse, error) {
	const op = "request.RemoveItem"

	return s.mutateOwnItems(ctx, op, requestID, callerID, func(txCtx context.Context, request *model.Request) ([]realtime.Event, string, error) {
		id, err := uuid.Parse(itemID)
		if err != nil {
			return nil, "", apperr.Validation(op, "invalid item id")
		}
		item, err := s.requests.FindItem(txCtx, id)
		if err != nil {
			return nil, "", apperr.E(op, apperr.KindNotFound, fmt.Errorf("item not found: %w", err))
		}
		if item.RequestID != request.ID {
			return nil, "", apperr.Validation(op, "item does not belong to this request")
		}
		if err := s.requests.DeleteItem(txCtx, id); err != nil {
			return nil, "", fmt.Errorf("failed to remove item: %w", err)
		}
		return []realtime.Event{{Table: realtime.TableRequestItems, Type: realtime.EventDelete, Old: item}},
			model.ActionRemoveItem, nil
	})
}

// mutateOwnItems wraps the shared preconditions of requester item edits:
// row lock, ownership and pending status. Approver edits during review go
// through the approval service instead.
func (s *requestService) mutateOwnItems(
	ctx context.Context,
	op, requestID string,
	callerID uuid.UUID,
	mutate func(txCtx context.Context, request *model.Request) ([]realtime.Event, string, error),
) (*RequestResponse, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, apperr.Validation(op, "invalid request id")
	}

	var events []realtime.Event
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, findErr := s.requests.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			return apperr.E(op, apperr.KindNotFound, fmt.Errorf("request not found: %w", findErr))
		}
		if request.RequesterID != callerID {
			return apperr.Unauthorized(op, "only the requester can edit items")
		}
		if request.Status != model.StatusPending {
			return apperr.Business(op, fmt.Sprintf("items cannot be edited in status %s", request.Status))
		}

		mutEvents, action, mutErr := mutate(txCtx, request)
		if mutErr != nil {
			return mutErr
		}
		events = mutEvents

		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &callerID,
			Action:     action,
			EntityID:   request.ID.String(),
			EntityName: request.RequestNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(events)
	return s.GetRequest(ctx, requestID)
}

func (s *requestService) publishAll(events []realtime.Event) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		s.publisher.Publish(ev)
	}
}

// --- Helpers ---

func buildItems(dtos []CreateItemDTO) ([]model.RequestItem, error) {
	items := make([]model.RequestItem, 0, len(dtos))
	for _, dto := range dtos {
		if dto.Quantity < 1 {
			return nil, fmt.Errorf("item %q: quantity must be >= 1", dto.Name)
		}
		cost := decimal.Zero
		if dto.UnitCost != "" {
			var err error
			cost, err = decimal.NewFromString(dto.UnitCost)
			if err != nil {
				return nil, fmt.Errorf("item %q: invalid unit_cost", dto.Name)
			}
		}
		items = append(items, model.RequestItem{
			Name:     dto.Name,
			Quantity: dto.Quantity,
			Unit:     dto.Unit,
			UnitCost: cost,
			Notes:    dto.Notes,
		})
	}
	return items, nil
}

func toRequestResponse(r *model.Request) RequestResponse {
	res := RequestResponse{
		ID:             r.ID.String(),
		RequestNumber:  r.RequestNumber,
		Title:          r.Title,
		Purpose:        r.Purpose,
		Priority:       r.Priority,
		Status:         r.Status,
		RequesterID:    r.RequesterID.String(),
		RequestTypeID:  r.RequestTypeID.String(),
		RequestedDate:  r.RequestedDate,
		EstimatedTotal: r.EstimatedTotal().String(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		CompletedAt:    r.CompletedAt,
	}
	if r.Requester != nil {
		res.RequesterName = r.Requester.DisplayName
	}
	if r.RequestType != nil {
		res.RequestTypeName = r.RequestType.Name
	}
	if r.WorkflowID != nil {
		res.WorkflowID = r.WorkflowID.String()
	}
	if r.CurrentStepID != nil {
		res.CurrentStepID = r.CurrentStepID.String()
	}
	if r.CurrentStep != nil {
		res.CurrentStepName = r.CurrentStep.Name
	}
	for _, item := range r.Items {
		res.Items = append(res.Items, RequestItemResponse{
			ID:       item.ID.String(),
			Name:     item.Name,
			Quantity: item.Quantity,
			Unit:     item.Unit,
			UnitCost: item.UnitCost.String(),
			Notes:    item.Notes,
		})
	}
	return res
}
