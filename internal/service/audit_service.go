package service

import (
	"context"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
)

type AuditLogResponse struct {
	ID          string `json:"id"`
	ProfileID   string `json:"profile_id"`
	ProfileName string `json:"profile_name"`
	Action      string `json:"action"`
	EntityID    string `json:"entity_id"`
	EntityName  string `json:"entity_name"`
	Details     string `json:"details"`
	CreatedAt   string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error)
	GetEntityTrail(ctx context.Context, entityID string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func toAuditResponses(logs []model.AuditLog) []AuditLogResponse {
	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		name := "System"
		profileID := ""
		if l.Profile != nil {
			name = l.Profile.DisplayName
		}
		if l.ProfileID != nil {
			profileID = l.ProfileID.String()
		}
		res = append(res, AuditLogResponse{
			ID:          l.ID.String(),
			ProfileID:   profileID,
			ProfileName: name,
			Action:      l.Action,
			EntityID:    l.EntityID,
			EntityName:  l.EntityName,
			Details:     l.Details,
			CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return res
}

func (s *auditService) GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toAuditResponses(logs), total, nil
}

func (s *auditService) GetEntityTrail(ctx context.Context, entityID string, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.ListByEntity(ctx, entityID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toAuditResponses(logs), total, nil
}
