package database

import (
	"log"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.Department{},
		&model.Role{},
		&model.Profile{},
		&model.RefreshToken{},
		&model.RequestType{},
		&model.ApprovalWorkflow{},
		&model.ApprovalStep{},
		&model.Request{},
		&model.RequestItem{},
		&model.RequestApproval{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
