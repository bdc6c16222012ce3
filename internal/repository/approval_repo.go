package repository

import (
	"context"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalRepository records workflow decisions. The table is append-only:
// the interface deliberately has no update or delete.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.RequestApproval) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestApproval, error)
	CountByRequest(ctx context.Context, requestID uuid.UUID) (int64, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, approval *model.RequestApproval) error {
	return GetDB(ctx, r.db).Create(approval).Error
}

func (r *approvalRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestApproval, error) {
	var approvals []model.RequestApproval
	err := GetDB(ctx, r.db).
		Preload("Step").
		Preload("Approver").
		Where("request_id = ?", requestID).
		Order("decided_at ASC").
		Find(&approvals).Error
	if err != nil {
		return nil, err
	}
	return approvals, nil
}

func (r *approvalRepository) CountByRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.RequestApproval{}).
		Where("request_id = ?", requestID).
		Count(&count).Error
	return count, err
}
