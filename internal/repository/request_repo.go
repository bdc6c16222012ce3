package repository

import (
	"context"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryFilter carries the filter object of the request-history query:
// paging, status/priority filters, free-text search, date range and sort.
type HistoryFilter struct {
	Page      int
	PageSize  int
	Status    string
	Priority  string
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time
	SortBy    string // created_at | updated_at | priority | status | request_number
	SortOrder string // asc | desc
}

var historySortColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"priority":       "priority",
	"status":         "status",
	"request_number": "request_number",
}

// RequestRepository defines data access for supply requests and their items
type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error)
	// FindByIDForUpdate locks the request row for the rest of the
	// transaction; concurrent approval transitions serialize on it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error)
	Update(ctx context.Context, req *model.Request) error
	History(ctx context.Context, requesterID uuid.UUID, filter HistoryFilter) ([]model.Request, int64, error)
	PendingByApprover(ctx context.Context, profileID, roleID uuid.UUID, requestTypeID *uuid.UUID, includeItems bool) ([]model.Request, error)
	NextSequence(ctx context.Context, prefix string) (int64, error)

	CreateItems(ctx context.Context, items []model.RequestItem) error
	FindItem(ctx context.Context, id uuid.UUID) (*model.RequestItem, error)
	SaveItem(ctx context.Context, item *model.RequestItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a new instance of RequestRepository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	err := GetDB(ctx, r.db).
		Preload("Requester").
		Preload("RequestType").
		Preload("Workflow").
		Preload("Workflow.Steps").
		Preload("CurrentStep").
		Preload("Items").
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) Update(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *requestRepository) historyQuery(db *gorm.DB, requesterID uuid.UUID, filter HistoryFilter) *gorm.DB {
	query := db.Where("requester_id = ?", requesterID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR request_number ILIKE ? OR purpose ILIKE ?", like, like, like)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}
	return query
}

func (r *requestRepository) History(ctx context.Context, requesterID uuid.UUID, filter HistoryFilter) ([]model.Request, int64, error) {
	db := GetDB(ctx, r.db)

	var total int64
	if err := r.historyQuery(db.Model(&model.Request{}), requesterID, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := historySortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if filter.SortOrder == "asc" {
		direction = "ASC"
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	var requests []model.Request
	err := r.historyQuery(db, requesterID, filter).
		Preload("RequestType").
		Preload("CurrentStep").
		Preload("Items").
		Order(column + " " + direction).
		Offset(offset).
		Limit(filter.PageSize).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// PendingByApprover returns non-terminal requests whose current step is
// either person-scoped to the profile or role-scoped to the role. A step
// carrying both scopes is person-scoped, so role matches are restricted to
// steps without a designated person.
func (r *requestRepository) PendingByApprover(ctx context.Context, profileID, roleID uuid.UUID, requestTypeID *uuid.UUID, includeItems bool) ([]model.Request, error) {
	db := GetDB(ctx, r.db)

	query := db.
		Joins("JOIN approval_steps ON approval_steps.id = requests.current_step_id").
		Where("requests.status IN ?", []string{model.StatusPending, model.StatusInProgress}).
		Where("approval_steps.approver_profile_id = ? OR (approval_steps.approver_profile_id IS NULL AND approval_steps.approver_role_id = ?)",
			profileID, roleID)
	if requestTypeID != nil {
		query = query.Where("requests.request_type_id = ?", *requestTypeID)
	}

	query = query.
		Preload("Requester").
		Preload("RequestType").
		Preload("CurrentStep")
	if includeItems {
		query = query.Preload("Items")
	}

	var requests []model.Request
	if err := query.Order("requests.created_at ASC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// NextSequence reserves the next request number for the given day prefix.
// An advisory lock on the prefix keeps concurrent creations from issuing
// duplicate numbers.
func (r *requestRepository) NextSequence(ctx context.Context, prefix string) (int64, error) {
	db := GetDB(ctx, r.db)
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Request{}).
		Where("request_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (r *requestRepository) CreateItems(ctx context.Context, items []model.RequestItem) error {
	if len(items) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&items).Error
}

func (r *requestRepository) FindItem(ctx context.Context, id uuid.UUID) (*model.RequestItem, error) {
	var item model.RequestItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *requestRepository) SaveItem(ctx context.Context, item *model.RequestItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *requestRepository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.RequestItem{}).Error
}
