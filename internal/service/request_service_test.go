package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestFixture struct {
	svc       RequestService
	requests  *fakeRequestRepo
	workflows *fakeWorkflowRepo
	audits    *fakeAuditRepo
	publisher *recordingPublisher
	typeID    uuid.UUID
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()

	rt := &model.RequestType{Name: "classroom supplies", IsActive: true}
	types := newFakeRequestTypeRepo(rt)
	requests := newFakeRequestRepo()
	workflows := newFakeWorkflowRepo()
	audits := &fakeAuditRepo{}
	publisher := &recordingPublisher{}
	workflowSvc := NewWorkflowService(workflows, newFakeProfileRepo(), &fakeAuditRepo{}, fakeTxManager{})
	svc := NewRequestService(requests, types, audits, workflowSvc, fakeTxManager{}, publisher)

	return &requestFixture{
		svc:       svc,
		requests:  requests,
		workflows: workflows,
		audits:    audits,
		publisher: publisher,
		typeID:    rt.ID,
	}
}

func (f *requestFixture) createDTO(items ...CreateItemDTO) CreateRequestDTO {
	if len(items) == 0 {
		items = []CreateItemDTO{{Name: "whiteboard markers", Quantity: 12, Unit: "box", UnitCost: "3.50"}}
	}
	return CreateRequestDTO{
		Title:         "supplies for term start",
		RequestTypeID: f.typeID.String(),
		Items:         items,
	}
}

func TestCreateRequestWithoutWorkflowAutoApproves(t *testing.T) {
	f := newRequestFixture(t)

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), uuid.New(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, res.Status)
	assert.Empty(t, res.CurrentStepID)
	assert.NotNil(t, res.CompletedAt)
	assert.Equal(t, model.PriorityMedium, res.Priority)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "42", res.EstimatedTotal)
}

func TestCreateRequestEntersWorkflow(t *testing.T) {
	f := newRequestFixture(t)

	approver := uuid.New()
	wf := &model.ApprovalWorkflow{
		Name:     "standard",
		IsActive: true,
		Steps:    []model.ApprovalStep{{Name: "head teacher", StepOrder: 10, ApproverProfileID: &approver}},
	}
	f.workflows.addWorkflow(wf)
	f.workflows.active = wf

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), uuid.New(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, wf.ID.String(), res.WorkflowID)
	assert.Equal(t, wf.Steps[0].ID.String(), res.CurrentStepID)
	assert.Nil(t, res.CompletedAt)
}

func TestRequestNumbersAreSequentialPerDay(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	first, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)
	second, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)

	prefix := "REQ-" + time.Now().Format("20060102") + "-"
	assert.Equal(t, prefix+"00001", first.RequestNumber)
	assert.Equal(t, prefix+"00002", second.RequestNumber)
}

func TestCreateRequestRejectsUnknownType(t *testing.T) {
	f := newRequestFixture(t)

	dto := f.createDTO()
	dto.RequestTypeID = uuid.New().String()
	_, err := f.svc.CreateRequest(context.Background(), dto, uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Empty(t, f.publisher.published())
}

func TestCancelRequestRequesterOnly(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)

	// Auto-approved request is terminal, so force it back to pending for
	// the cancellation paths under test
	id := uuid.MustParse(res.ID)
	f.requests.requests[id].Status = model.StatusPending

	_, err = f.svc.CancelRequest(context.Background(), res.ID, CancelRequestDTO{Reason: "ordered elsewhere"}, uuid.New())
	require.Error(t, err)

	cancelled, err := f.svc.CancelRequest(context.Background(), res.ID, CancelRequestDTO{Reason: "ordered elsewhere"}, requester)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)
}

func TestCancelRequestOnlyWhilePending(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)

	// Created without a workflow the request lands approved already
	_, err = f.svc.CancelRequest(context.Background(), res.ID, CancelRequestDTO{Reason: "too late"}, requester)
	require.Error(t, err)
}

func TestCopyRequestSkipsStruckItems(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(
		CreateItemDTO{Name: "markers", Quantity: 12, UnitCost: "3.50"},
		CreateItemDTO{Name: "glue sticks", Quantity: 30, UnitCost: "0.80"},
	), requester, uuid.New())
	require.NoError(t, err)

	// Strike the glue sticks the way an approver edit would
	for _, item := range f.requests.items {
		if item.Name == "glue sticks" {
			item.Quantity = 0
		}
	}

	copied, err := f.svc.CopyRequest(context.Background(), res.ID, requester, uuid.New())
	require.NoError(t, err)
	require.Len(t, copied.Items, 1)
	assert.Equal(t, "markers", copied.Items[0].Name)
	assert.NotEqual(t, res.RequestNumber, copied.RequestNumber)
}

func TestCopyRequestSurvivesFailedAuditEntry(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)

	// The copy is committed before its audit row is written; a failing
	// trail insert must not surface as a copy failure
	f.audits.failAction = model.ActionCopyRequest
	copied, err := f.svc.CopyRequest(context.Background(), res.ID, requester, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, copied)
	assert.NotEqual(t, res.ID, copied.ID)

	for _, entry := range f.audits.entries {
		assert.NotEqual(t, model.ActionCopyRequest, entry.Action)
	}
}

func TestCopyRequestFailsWhenNothingLeft(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)
	for _, item := range f.requests.items {
		item.Quantity = 0
	}

	_, err = f.svc.CopyRequest(context.Background(), res.ID, requester, uuid.New())
	require.Error(t, err)
}

func TestItemMutationsRequirePendingStatus(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)

	// Approved request rejects requester item edits
	_, err = f.svc.AddItem(context.Background(), res.ID, CreateItemDTO{Name: "tape", Quantity: 2}, requester)
	require.Error(t, err)

	id := uuid.MustParse(res.ID)
	f.requests.requests[id].Status = model.StatusPending

	updated, err := f.svc.AddItem(context.Background(), res.ID, CreateItemDTO{Name: "tape", Quantity: 2}, requester)
	require.NoError(t, err)
	assert.Len(t, updated.Items, 2)
}

func TestRemoveItemChecksOwnership(t *testing.T) {
	f := newRequestFixture(t)
	requester := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), requester, uuid.New())
	require.NoError(t, err)
	id := uuid.MustParse(res.ID)
	f.requests.requests[id].Status = model.StatusPending

	foreign := model.RequestItem{RequestID: uuid.New(), Name: "stapler", Quantity: 1}
	require.NoError(t, f.requests.CreateItems(context.Background(), []model.RequestItem{foreign}))
	var foreignID uuid.UUID
	for itemID, item := range f.requests.items {
		if item.Name == "stapler" {
			foreignID = itemID
		}
	}

	_, err = f.svc.RemoveItem(context.Background(), res.ID, foreignID.String(), requester)
	require.Error(t, err)

	updated, err := f.svc.RemoveItem(context.Background(), res.ID, res.Items[0].ID, requester)
	require.NoError(t, err)
	assert.Empty(t, updated.Items)
}

func TestCreateRequestAuditsAndPublishes(t *testing.T) {
	f := newRequestFixture(t)

	res, err := f.svc.CreateRequest(context.Background(), f.createDTO(), uuid.New(), uuid.New())
	require.NoError(t, err)

	require.NotEmpty(t, f.audits.entries)
	assert.Equal(t, model.ActionCreateRequest, f.audits.entries[0].Action)
	assert.Equal(t, res.RequestNumber, f.audits.entries[0].EntityName)

	events := f.publisher.published()
	require.Len(t, events, 2) // one request insert, one item insert
}

func TestBuildItemsValidatesCost(t *testing.T) {
	_, err := buildItems([]CreateItemDTO{{Name: "tape", Quantity: 1, UnitCost: "not-a-number"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("item %q", "tape"))
}
