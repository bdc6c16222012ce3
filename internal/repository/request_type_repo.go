package repository

import (
	"context"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestTypeRepository interface {
	Create(ctx context.Context, rt *model.RequestType) error
	Update(ctx context.Context, rt *model.RequestType) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RequestType, error)
	FindByName(ctx context.Context, name string) (*model.RequestType, error)
	ListActive(ctx context.Context) ([]model.RequestType, error)
	ListAll(ctx context.Context) ([]model.RequestType, error)
}

type requestTypeRepository struct {
	db *gorm.DB
}

func NewRequestTypeRepository(db *gorm.DB) RequestTypeRepository {
	return &requestTypeRepository{db: db}
}

func (r *requestTypeRepository) Create(ctx context.Context, rt *model.RequestType) error {
	return GetDB(ctx, r.db).Create(rt).Error
}

func (r *requestTypeRepository) Update(ctx context.Context, rt *model.RequestType) error {
	return GetDB(ctx, r.db).Save(rt).Error
}

func (r *requestTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RequestType, error) {
	var rt model.RequestType
	if err := GetDB(ctx, r.db).First(&rt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *requestTypeRepository) FindByName(ctx context.Context, name string) (*model.RequestType, error) {
	var rt model.RequestType
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *requestTypeRepository) ListActive(ctx context.Context) ([]model.RequestType, error) {
	var types []model.RequestType
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("name asc").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

func (r *requestTypeRepository) ListAll(ctx context.Context) ([]model.RequestType, error) {
	var types []model.RequestType
	if err := GetDB(ctx, r.db).Order("name asc").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}
