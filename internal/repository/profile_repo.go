package repository

import (
	"context"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for data access of Profile entities
type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetByEmployeeCode(ctx context.Context, code string) (*model.Profile, error)
	List(ctx context.Context, page, limit int) ([]model.Profile, int64, error)
	Update(ctx context.Context, profile *model.Profile) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteRefreshTokensForProfile(ctx context.Context, profileID uuid.UUID) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new instance of ProfileRepository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	return GetDB(ctx, r.db).Create(profile).Error
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	if err := GetDB(ctx, r.db).Preload("Role").First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var profile model.Profile
	if err := GetDB(ctx, r.db).Preload("Role").First(&profile, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetByEmployeeCode(ctx context.Context, code string) (*model.Profile, error) {
	var profile model.Profile
	if err := GetDB(ctx, r.db).Preload("Role").First(&profile, "employee_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) List(ctx context.Context, page, limit int) ([]model.Profile, int64, error) {
	var profiles []model.Profile
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Profile{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Role").Order("display_name ASC").Offset(offset).Limit(limit).Find(&profiles).Error; err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *model.Profile) error {
	return GetDB(ctx, r.db).Save(profile).Error
}

func (r *profileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Profile{}).Error
}

func (r *profileRepository) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *profileRepository) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var refresh model.RefreshToken
	if err := GetDB(ctx, r.db).First(&refresh, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &refresh, nil
}

func (r *profileRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	return GetDB(ctx, r.db).Where("token = ?", token).Delete(&model.RefreshToken{}).Error
}

func (r *profileRepository) DeleteRefreshTokensForProfile(ctx context.Context, profileID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("profile_id = ?", profileID).Delete(&model.RefreshToken{}).Error
}
