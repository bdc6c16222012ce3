package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// DTOs for Request validation
type CreateProfileRequest struct {
	DisplayName  string `json:"display_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
	EmployeeCode string `json:"employee_code" binding:"required"`
	Password     string `json:"password" binding:"required,min=6"`
	RoleID       string `json:"role_id" binding:"required"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	RoleID      string `json:"role_id"`
	IsActive    *bool  `json:"is_active"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// DTO for returning Profile without exposing sensitive data
type ProfileResponse struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	EmployeeCode string    `json:"employee_code"`
	RoleID       uuid.UUID `json:"role_id"`
	RoleName     string    `json:"role_name,omitempty"`
	CanApprove   bool      `json:"can_approve"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

// ProfileService defines the interface for business logic related to Profile
type ProfileService interface {
	CreateProfile(ctx context.Context, req CreateProfileRequest, actorID uuid.UUID) (*ProfileResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, profileID uuid.UUID) error
	GetProfileByID(ctx context.Context, id string) (*ProfileResponse, error)
	ListProfiles(ctx context.Context, page, limit int) ([]ProfileResponse, int64, error)
	UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest, actorID uuid.UUID) (*ProfileResponse, error)
	DeactivateProfile(ctx context.Context, id string) error
}

type profileService struct {
	repo      repository.ProfileRepository
	roles     repository.RoleRepository
	audits    repository.AuditRepository
	txManager repository.TransactionManager
}

// NewProfileService returns a new instance of ProfileService
func NewProfileService(
	repo repository.ProfileRepository,
	roles repository.RoleRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
) ProfileService {
	return &profileService{repo: repo, roles: roles, audits: audits, txManager: txManager}
}

// GetJWTSecret returns the signing secret, falling back to a development
// default when the env var is unset.
func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}
	return []byte(secret)
}

// Helper: parse model to standard json API response
func toProfileResponse(p *model.Profile) *ProfileResponse {
	res := &ProfileResponse{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		Email:        p.Email,
		Phone:        p.Phone,
		EmployeeCode: p.EmployeeCode,
		RoleID:       p.RoleID,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Role != nil {
		res.RoleName = p.Role.Name
		res.CanApprove = p.Role.CanApprove
	}
	return res
}

func (s *profileService) CreateProfile(ctx context.Context, req CreateProfileRequest, actorID uuid.UUID) (*ProfileResponse, error) {
	const op = "profile.Create"

	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		return nil, apperr.Validation(op, "invalid role_id")
	}
	if _, err := s.roles.FindByID(ctx, roleID); err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("role not found: %w", err))
	}

	// Double check uniqueness via repo directly
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Business(op, "email already exists")
	}
	if _, err := s.repo.GetByEmployeeCode(ctx, req.EmployeeCode); err == nil {
		return nil, apperr.Business(op, "employee code already exists")
	}

	// Hash password automatically
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	profile := &model.Profile{
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		Phone:        req.Phone,
		EmployeeCode: req.EmployeeCode,
		Password:     string(hashedPassword),
		RoleID:       roleID,
		IsActive:     true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, profile); err != nil {
			return err
		}
		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &actorID,
			Action:     model.ActionCreateProfile,
			EntityID:   profile.ID.String(),
			EntityName: profile.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	return toProfileResponse(profile), nil
}

func (s *profileService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	const op = "profile.Login"

	profile, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperr.Unauthorized(op, "invalid email or password")
	}
	if !profile.IsActive {
		return nil, apperr.Unauthorized(op, "account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized(op, "invalid email or password")
	}

	return s.issueTokens(ctx, profile)
}

func (s *profileService) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	const op = "profile.Refresh"

	stored, err := s.repo.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, apperr.Unauthorized(op, "invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.repo.DeleteRefreshToken(ctx, req.RefreshToken)
		return nil, apperr.Unauthorized(op, "refresh token expired")
	}

	profile, err := s.repo.GetByID(ctx, stored.ProfileID)
	if err != nil || !profile.IsActive {
		return nil, apperr.Unauthorized(op, "account unavailable")
	}

	// Rotate: the used token is invalidated alongside issuing the new pair
	if err := s.repo.DeleteRefreshToken(ctx, req.RefreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, profile)
}

func (s *profileService) Logout(ctx context.Context, profileID uuid.UUID) error {
	return s.repo.DeleteRefreshTokensForProfile(ctx, profileID)
}

func (s *profileService) issueTokens(ctx context.Context, profile *model.Profile) (*TokenResponse, error) {
	roleName := ""
	if profile.Role != nil {
		roleName = profile.Role.Name
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     profile.ID.String(),
		"role":    roleName,
		"role_id": profile.RoleID.String(),
		"iat":     now.Unix(),
		"exp":     now.Add(accessTokenTTL).Unix(),
	})
	tokenString, err := token.SignedString(GetJWTSecret())
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	refresh := &model.RefreshToken{
		ProfileID: profile.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(refreshTokenTTL),
	}
	if err := s.repo.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenResponse{
		Token:        tokenString,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *profileService) GetProfileByID(ctx context.Context, id string) (*ProfileResponse, error) {
	const op = "profile.Get"

	profileID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid profile id")
	}
	profile, err := s.repo.GetByID(ctx, profileID)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("profile not found: %w", err))
	}
	return toProfileResponse(profile), nil
}

func (s *profileService) ListProfiles(ctx context.Context, page, limit int) ([]ProfileResponse, int64, error) {
	profiles, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]ProfileResponse, 0, len(profiles))
	for i := range profiles {
		res = append(res, *toProfileResponse(&profiles[i]))
	}
	return res, total, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest, actorID uuid.UUID) (*ProfileResponse, error) {
	const op = "profile.Update"

	profileID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid profile id")
	}
	profile, err := s.repo.GetByID(ctx, profileID)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("profile not found: %w", err))
	}

	if req.DisplayName != "" {
		profile.DisplayName = req.DisplayName
	}
	if req.Phone != "" {
		profile.Phone = req.Phone
	}
	if req.RoleID != "" {
		roleID, parseErr := uuid.Parse(req.RoleID)
		if parseErr != nil {
			return nil, apperr.Validation(op, "invalid role_id")
		}
		if _, findErr := s.roles.FindByID(ctx, roleID); findErr != nil {
			return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("role not found: %w", findErr))
		}
		profile.RoleID = roleID
		profile.Role = nil
	}
	if req.IsActive != nil {
		profile.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, profile); err != nil {
			return err
		}
		return s.audits.Log(txCtx, &model.AuditLog{
			ProfileID:  &actorID,
			Action:     model.ActionUpdateProfile,
			EntityID:   profile.ID.String(),
			EntityName: profile.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	// Reload with the role for an accurate response
	updated, err := s.repo.GetByID(ctx, profileID)
	if err != nil {
		return toProfileResponse(profile), nil
	}
	return toProfileResponse(updated), nil
}

func (s *profileService) DeactivateProfile(ctx context.Context, id string) error {
	const op = "profile.Deactivate"

	profileID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation(op, "invalid profile id")
	}
	if err := s.repo.DeleteRefreshTokensForProfile(ctx, profileID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, profileID)
}
