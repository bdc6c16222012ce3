package service

import (
	"context"
	"fmt"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/pkg/apperr"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	CanApprove   bool   `json:"can_approve"`
	ParentRoleID string `json:"parent_role_id"`
	DepartmentID string `json:"department_id"`
}

type UpdateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CanApprove  *bool  `json:"can_approve"`
}

type CreateDepartmentRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

type RoleResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CanApprove   bool   `json:"can_approve"`
	IsSystem     bool   `json:"is_system"`
	ParentRoleID string `json:"parent_role_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	Department   string `json:"department,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type DepartmentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListDepartments(ctx context.Context) ([]DepartmentResponse, error)
	CreateDepartment(ctx context.Context, req CreateDepartmentRequest) (*DepartmentResponse, error)
	// SeedDefaultRoles creates the built-in school roles when missing.
	// Safe to call on every startup.
	SeedDefaultRoles(ctx context.Context) error
}

type roleService struct {
	repo repository.RoleRepository
}

func NewRoleService(repo repository.RoleRepository) RoleService {
	return &roleService{repo: repo}
}

// --- Implementation ---

func toRoleResponse(r *model.Role) RoleResponse {
	res := RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		CanApprove:  r.CanApprove,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if r.ParentRoleID != nil {
		res.ParentRoleID = r.ParentRoleID.String()
	}
	if r.DepartmentID != nil {
		res.DepartmentID = r.DepartmentID.String()
	}
	if r.Department != nil {
		res.Department = r.Department.Name
	}
	return res
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		res = append(res, toRoleResponse(&roles[i]))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	const op = "role.Get"

	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid role id")
	}
	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("role not found: %w", err))
	}
	res := toRoleResponse(role)
	return &res, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	const op = "role.Create"

	if _, err := s.repo.FindByName(ctx, req.Name); err == nil {
		return nil, apperr.Business(op, "role name already exists")
	}

	role := &model.Role{
		Name:        req.Name,
		Description: req.Description,
		CanApprove:  req.CanApprove,
		IsSystem:    false,
	}
	if req.ParentRoleID != "" {
		parentID, err := uuid.Parse(req.ParentRoleID)
		if err != nil {
			return nil, apperr.Validation(op, "invalid parent_role_id")
		}
		if _, err := s.repo.FindByID(ctx, parentID); err != nil {
			return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("parent role not found: %w", err))
		}
		role.ParentRoleID = &parentID
	}
	if req.DepartmentID != "" {
		deptID, err := uuid.Parse(req.DepartmentID)
		if err != nil {
			return nil, apperr.Validation(op, "invalid department_id")
		}
		role.DepartmentID = &deptID
	}

	if err := s.repo.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	res := toRoleResponse(role)
	return &res, nil
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	const op = "role.Update"

	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation(op, "invalid role id")
	}
	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return nil, apperr.E(op, apperr.KindNotFound, fmt.Errorf("role not found: %w", err))
	}
	if role.IsSystem && req.Name != "" && req.Name != role.Name {
		return nil, apperr.Business(op, "built-in roles cannot be renamed")
	}

	if req.Name != "" {
		role.Name = req.Name
	}
	if req.Description != "" {
		role.Description = req.Description
	}
	if req.CanApprove != nil {
		role.CanApprove = *req.CanApprove
	}

	if err := s.repo.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	res := toRoleResponse(role)
	return &res, nil
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	const op = "role.Delete"

	roleID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation(op, "invalid role id")
	}
	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return apperr.E(op, apperr.KindNotFound, fmt.Errorf("role not found: %w", err))
	}
	if role.IsSystem {
		return apperr.Business(op, "built-in roles cannot be deleted")
	}
	return s.repo.Delete(ctx, roleID)
}

func (s *roleService) ListDepartments(ctx context.Context) ([]DepartmentResponse, error) {
	depts, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch departments: %w", err)
	}
	res := make([]DepartmentResponse, 0, len(depts))
	for _, d := range depts {
		res = append(res, DepartmentResponse{ID: d.ID.String(), Name: d.Name, Code: d.Code})
	}
	return res, nil
}

func (s *roleService) CreateDepartment(ctx context.Context, req CreateDepartmentRequest) (*DepartmentResponse, error) {
	dept := &model.Department{Name: req.Name, Code: req.Code}
	if err := s.repo.CreateDepartment(ctx, dept); err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return &DepartmentResponse{ID: dept.ID.String(), Name: dept.Name, Code: dept.Code}, nil
}

func (s *roleService) SeedDefaultRoles(ctx context.Context) error {
	defaults := []model.Role{
		{Name: "admin", Description: "System administrator", CanApprove: true, IsSystem: true},
		{Name: "principal", Description: "School principal", CanApprove: true, IsSystem: true},
		{Name: "head_teacher", Description: "Department head teacher", CanApprove: true, IsSystem: true},
		{Name: "teacher", Description: "Teaching staff", IsSystem: true},
		{Name: "staff", Description: "Administrative staff", IsSystem: true},
	}
	for i := range defaults {
		if _, err := s.repo.FindByName(ctx, defaults[i].Name); err == nil {
			continue
		}
		if err := s.repo.Create(ctx, &defaults[i]); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", defaults[i].Name, err)
		}
	}
	return nil
}
