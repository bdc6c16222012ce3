package repository

import (
	"context"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkflowRepository defines data access for approval workflows and steps
type WorkflowRepository interface {
	Create(ctx context.Context, wf *model.ApprovalWorkflow) error
	Update(ctx context.Context, wf *model.ApprovalWorkflow) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalWorkflow, error)
	// FindActive resolves the workflow applicable to requests of the given
	// type submitted by the given role. Steps are preloaded in order.
	FindActive(ctx context.Context, requestTypeID, roleID uuid.UUID) (*model.ApprovalWorkflow, error)
	List(ctx context.Context, page, limit int) ([]model.ApprovalWorkflow, int64, error)
	FindStep(ctx context.Context, id uuid.UUID) (*model.ApprovalStep, error)
	FindStepsByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]model.ApprovalStep, error)
}

type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository returns a new instance of WorkflowRepository
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Create(ctx context.Context, wf *model.ApprovalWorkflow) error {
	return GetDB(ctx, r.db).Create(wf).Error
}

func (r *workflowRepository) Update(ctx context.Context, wf *model.ApprovalWorkflow) error {
	return GetDB(ctx, r.db).Save(wf).Error
}

func (r *workflowRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalWorkflow, error) {
	var wf model.ApprovalWorkflow
	err := GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		Preload("RequestType").
		Preload("Role").
		First(&wf, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) FindActive(ctx context.Context, requestTypeID, roleID uuid.UUID) (*model.ApprovalWorkflow, error) {
	var wf model.ApprovalWorkflow
	err := GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		Where("request_type_id = ? AND role_id = ? AND is_active = ?", requestTypeID, roleID, true).
		First(&wf).Error
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) List(ctx context.Context, page, limit int) ([]model.ApprovalWorkflow, int64, error) {
	var workflows []model.ApprovalWorkflow
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.ApprovalWorkflow{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		Preload("RequestType").
		Preload("Role").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&workflows).Error
	if err != nil {
		return nil, 0, err
	}

	return workflows, total, nil
}

func (r *workflowRepository) FindStep(ctx context.Context, id uuid.UUID) (*model.ApprovalStep, error) {
	var step model.ApprovalStep
	if err := GetDB(ctx, r.db).First(&step, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *workflowRepository) FindStepsByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	err := GetDB(ctx, r.db).
		Where("workflow_id = ?", workflowID).
		Order("step_order ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}
