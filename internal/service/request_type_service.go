package service

import (
	"context"
	"fmt"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/pkg/apperr"

	"github.com/google/uuid"
)

type CreateRequestTypeDTO struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type RequestTypeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type RequestTypeService interface {
	ListRequestTypes(ctx context.Context, includeInactive bool) ([]RequestTypeResponse, error)
	CreateRequestType(ctx context.Context, req CreateRequestTypeDTO) (*RequestTypeResponse, error)
	SetRequestTypeActive(ctx context.Context, id string, active bool) (*RequestTypeResponse, error)
}

type requestTypeService struct {
	repo repository.RequestTypeRepository
}

func NewRequestTypeService(repo repository.RequestTypeRepository) RequestTypeService {
	return &requestTypeService{repo: repo}
}

func toRequestTypeResponse(rt *model.RequestType) RequestTypeResponse {
	return RequestTypeResponse{
		ID:          rt.ID.String(),
		Name:        rt.Name,
		Description: rt.Description,
		IsActive:    rt.IsActive,
	}
}

func (s *requestTypeService) ListRequestTypes(ctx context.Context, includeInactive bool) ([]RequestTypeResponse, error) {
	var (
		types []model.RequestType
		err   error
	)
	if includeInactive {
		types, err = s.repo.ListAll(ctx)
	} else {
		types, err = s.repo.ListActive(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request types: %w", err)
	}

	res := make([]RequestTypeResponse, 0, len(types))
	for i := range types {
		res = append(res, toRequestTypeResponse(&types[i]))
	}
	return res, nil
}

func (s *requestTypeService) CreateRequestType(ctx context.Context, req CreateRequestTypeDTO) (*RequestTypeResponse, error) {
	const op = "requesttype.Create"

	if _, err := s.repo.FindByName(ctx, req.Name); err == nil {
		return nil, apperr.Business(op, "request type name already exists")
	}

	rt := &model.RequestType{Name: req.Name, Description: req.Description, IsActive: true}
	if err := s.repo.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to create request type: %w", err)
	}
	res := toRequestTypeResponse(rt)
	return &res, nil
}

func (s *requestTypeService) SetRequestTypeActive(ctx context.Context, id string, active bool) (*RequestTypeResponse, error) {
	const op = "requesttype.SetActive"

	typeID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid request type id")
	}
	rt, err := s.repo.FindByID(ctx, typeID)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("request type not found: %w", err))
	}

	rt.IsActive = active
	if err := s.repo.Update(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to update request type: %w", err)
	}
	res := toRequestTypeResponse(rt)
	return &res, nil
}
