package model

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a staff position (teacher, head-teacher, principal...).
// CanApprove marks roles allowed to act on role-scoped workflow steps.
// ParentRoleID forms an optional reporting hierarchy.
type Role struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description  string      `gorm:"type:text" json:"description"`
	CanApprove   bool        `gorm:"default:false" json:"can_approve"`
	IsSystem     bool        `gorm:"default:false" json:"is_system"` // Prevent deletion of built-in roles
	ParentRoleID *uuid.UUID  `gorm:"type:uuid" json:"parent_role_id"`
	ParentRole   *Role       `gorm:"foreignKey:ParentRoleID" json:"parent_role,omitempty"`
	DepartmentID *uuid.UUID  `gorm:"type:uuid;index" json:"department_id"`
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Department groups roles for reporting and filtering
type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Code      string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
