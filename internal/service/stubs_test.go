package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"
	"github.com/Dat3K/viet-anh-supply-be/internal/realtime"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory fakes shared by the service tests.

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ev realtime.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) published() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

// --- requests ---

type fakeRequestRepo struct {
	requests map[uuid.UUID]*model.Request
	items    map[uuid.UUID]*model.RequestItem
	seq      int64

	updateErr error
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		requests: make(map[uuid.UUID]*model.Request),
		items:    make(map[uuid.UUID]*model.RequestItem),
	}
}

func (r *fakeRequestRepo) Create(_ context.Context, req *model.Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *fakeRequestRepo) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	req, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, item := range r.items {
		if item.RequestID == id {
			req.Items = append(req.Items, *item)
		}
	}
	return req, nil
}

func (r *fakeRequestRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeRequestRepo) Update(_ context.Context, req *model.Request) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.requests[req.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeRequestRepo) History(_ context.Context, requesterID uuid.UUID, _ repository.HistoryFilter) ([]model.Request, int64, error) {
	var out []model.Request
	for _, req := range r.requests {
		if req.RequesterID == requesterID {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) PendingByApprover(_ context.Context, profileID, roleID uuid.UUID, _ *uuid.UUID, _ bool) ([]model.Request, error) {
	var out []model.Request
	for _, req := range r.requests {
		if req.Status == model.StatusPending || req.Status == model.StatusInProgress {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *fakeRequestRepo) NextSequence(_ context.Context, _ string) (int64, error) {
	r.seq++
	return r.seq, nil
}

func (r *fakeRequestRepo) CreateItems(_ context.Context, items []model.RequestItem) error {
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		cp := items[i]
		r.items[cp.ID] = &cp
	}
	return nil
}

func (r *fakeRequestRepo) FindItem(_ context.Context, id uuid.UUID) (*model.RequestItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *fakeRequestRepo) SaveItem(_ context.Context, item *model.RequestItem) error {
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *fakeRequestRepo) DeleteItem(_ context.Context, id uuid.UUID) error {
	delete(r.items, id)
	return nil
}

// --- workflows ---

type fakeWorkflowRepo struct {
	active    *model.ApprovalWorkflow
	activeErr error
	workflows map[uuid.UUID]*model.ApprovalWorkflow
	steps     map[uuid.UUID]*model.ApprovalStep
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{
		workflows: make(map[uuid.UUID]*model.ApprovalWorkflow),
		steps:     make(map[uuid.UUID]*model.ApprovalStep),
	}
}

// addWorkflow registers the workflow and its steps, assigning ids as needed
func (r *fakeWorkflowRepo) addWorkflow(wf *model.ApprovalWorkflow) {
	if wf.ID == uuid.Nil {
		wf.ID = uuid.New()
	}
	for i := range wf.Steps {
		if wf.Steps[i].ID == uuid.Nil {
			wf.Steps[i].ID = uuid.New()
		}
		wf.Steps[i].WorkflowID = wf.ID
		cp := wf.Steps[i]
		r.steps[cp.ID] = &cp
	}
	r.workflows[wf.ID] = wf
}

func (r *fakeWorkflowRepo) Create(_ context.Context, wf *model.ApprovalWorkflow) error {
	r.addWorkflow(wf)
	return nil
}

func (r *fakeWorkflowRepo) Update(_ context.Context, wf *model.ApprovalWorkflow) error {
	r.workflows[wf.ID] = wf
	return nil
}

func (r *fakeWorkflowRepo) FindByID(_ context.Context, id uuid.UUID) (*model.ApprovalWorkflow, error) {
	wf, ok := r.workflows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return wf, nil
}

func (r *fakeWorkflowRepo) FindActive(_ context.Context, _, _ uuid.UUID) (*model.ApprovalWorkflow, error) {
	if r.activeErr != nil {
		return nil, r.activeErr
	}
	if r.active == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.active, nil
}

func (r *fakeWorkflowRepo) List(_ context.Context, _, _ int) ([]model.ApprovalWorkflow, int64, error) {
	var out []model.ApprovalWorkflow
	for _, wf := range r.workflows {
		out = append(out, *wf)
	}
	return out, int64(len(out)), nil
}

func (r *fakeWorkflowRepo) FindStep(_ context.Context, id uuid.UUID) (*model.ApprovalStep, error) {
	step, ok := r.steps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *step
	return &cp, nil
}

func (r *fakeWorkflowRepo) FindStepsByWorkflow(_ context.Context, workflowID uuid.UUID) ([]model.ApprovalStep, error) {
	var out []model.ApprovalStep
	for _, step := range r.steps {
		if step.WorkflowID == workflowID {
			out = append(out, *step)
		}
	}
	return out, nil
}

// --- approvals ---

type fakeApprovalRepo struct {
	rows []model.RequestApproval
}

func (r *fakeApprovalRepo) Create(_ context.Context, approval *model.RequestApproval) error {
	if approval.ID == uuid.Nil {
		approval.ID = uuid.New()
	}
	r.rows = append(r.rows, *approval)
	return nil
}

func (r *fakeApprovalRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]model.RequestApproval, error) {
	var out []model.RequestApproval
	for _, row := range r.rows {
		if row.RequestID == requestID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeApprovalRepo) CountByRequest(_ context.Context, requestID uuid.UUID) (int64, error) {
	rows, _ := r.ListByRequest(context.Background(), requestID)
	return int64(len(rows)), nil
}

// --- profiles ---

type fakeProfileRepo struct {
	byID map[uuid.UUID]*model.Profile
}

func newFakeProfileRepo(profiles ...*model.Profile) *fakeProfileRepo {
	r := &fakeProfileRepo{byID: make(map[uuid.UUID]*model.Profile)}
	for _, p := range profiles {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		r.byID[p.ID] = p
	}
	return r
}

func (r *fakeProfileRepo) Create(_ context.Context, profile *model.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	r.byID[profile.ID] = profile
	return nil
}

func (r *fakeProfileRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	for _, p := range r.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeProfileRepo) GetByEmployeeCode(_ context.Context, code string) (*model.Profile, error) {
	for _, p := range r.byID {
		if p.EmployeeCode == code {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeProfileRepo) List(_ context.Context, _, _ int) ([]model.Profile, int64, error) {
	var out []model.Profile
	for _, p := range r.byID {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProfileRepo) Update(_ context.Context, profile *model.Profile) error {
	r.byID[profile.ID] = profile
	return nil
}

func (r *fakeProfileRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeProfileRepo) CreateRefreshToken(_ context.Context, _ *model.RefreshToken) error {
	return nil
}

func (r *fakeProfileRepo) GetRefreshToken(_ context.Context, _ string) (*model.RefreshToken, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeProfileRepo) DeleteRefreshToken(_ context.Context, _ string) error { return nil }

func (r *fakeProfileRepo) DeleteRefreshTokensForProfile(_ context.Context, _ uuid.UUID) error {
	return nil
}

// --- request types ---

type fakeRequestTypeRepo struct {
	byID map[uuid.UUID]*model.RequestType
}

func newFakeRequestTypeRepo(types ...*model.RequestType) *fakeRequestTypeRepo {
	r := &fakeRequestTypeRepo{byID: make(map[uuid.UUID]*model.RequestType)}
	for _, rt := range types {
		if rt.ID == uuid.Nil {
			rt.ID = uuid.New()
		}
		r.byID[rt.ID] = rt
	}
	return r
}

func (r *fakeRequestTypeRepo) Create(_ context.Context, rt *model.RequestType) error {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	r.byID[rt.ID] = rt
	return nil
}

func (r *fakeRequestTypeRepo) Update(_ context.Context, rt *model.RequestType) error {
	r.byID[rt.ID] = rt
	return nil
}

func (r *fakeRequestTypeRepo) FindByID(_ context.Context, id uuid.UUID) (*model.RequestType, error) {
	rt, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rt, nil
}

func (r *fakeRequestTypeRepo) FindByName(_ context.Context, name string) (*model.RequestType, error) {
	for _, rt := range r.byID {
		if rt.Name == name {
			return rt, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRequestTypeRepo) ListActive(_ context.Context) ([]model.RequestType, error) {
	var out []model.RequestType
	for _, rt := range r.byID {
		if rt.IsActive {
			out = append(out, *rt)
		}
	}
	return out, nil
}

func (r *fakeRequestTypeRepo) ListAll(_ context.Context) ([]model.RequestType, error) {
	var out []model.RequestType
	for _, rt := range r.byID {
		out = append(out, *rt)
	}
	return out, nil
}

// --- audit ---

type fakeAuditRepo struct {
	entries []model.AuditLog

	// failAction makes Log fail for one action, leaving the rest working
	failAction string
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if r.failAction != "" && entry.Action == r.failAction {
		return errBoom
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, _, _ int) ([]model.AuditLog, int64, error) {
	return r.entries, int64(len(r.entries)), nil
}

func (r *fakeAuditRepo) ListByEntity(_ context.Context, entityID string, _, _ int) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for _, e := range r.entries {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

var errBoom = fmt.Errorf("boom")
