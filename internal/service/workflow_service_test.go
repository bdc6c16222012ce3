package service

import (
	"context"
	"testing"

	"github.com/Dat3K/viet-anh-supply-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflowServiceForTest(workflows *fakeWorkflowRepo, profiles *fakeProfileRepo) WorkflowService {
	if profiles == nil {
		profiles = newFakeProfileRepo()
	}
	return NewWorkflowService(workflows, profiles, &fakeAuditRepo{}, fakeTxManager{})
}

func TestAssignWorkflowPicksFirstStep(t *testing.T) {
	workflows := newFakeWorkflowRepo()
	wf := &model.ApprovalWorkflow{
		Name:     "two-step chain",
		IsActive: true,
		Steps: []model.ApprovalStep{
			{Name: "final", StepOrder: 20},
			{Name: "first", StepOrder: 10},
		},
	}
	workflows.addWorkflow(wf)
	workflows.active = wf

	svc := newWorkflowServiceForTest(workflows, nil)
	assignment := svc.AssignWorkflow(context.Background(), uuid.New(), uuid.New())

	require.NotNil(t, assignment.WorkflowID)
	require.NotNil(t, assignment.CurrentStepID)
	assert.Equal(t, wf.ID, *assignment.WorkflowID)
	// lowest order wins, regardless of slice position
	assert.Equal(t, wf.Steps[1].ID, *assignment.CurrentStepID)
	assert.Equal(t, model.StatusPending, assignment.Status)
}

func TestAssignWorkflowAutoApprovesWhenNoneConfigured(t *testing.T) {
	svc := newWorkflowServiceForTest(newFakeWorkflowRepo(), nil)

	assignment := svc.AssignWorkflow(context.Background(), uuid.New(), uuid.New())

	assert.Nil(t, assignment.WorkflowID)
	assert.Nil(t, assignment.CurrentStepID)
	assert.Equal(t, model.StatusApproved, assignment.Status)
}

func TestAssignWorkflowAutoApprovesOnLookupError(t *testing.T) {
	workflows := newFakeWorkflowRepo()
	workflows.activeErr = errBoom

	svc := newWorkflowServiceForTest(workflows, nil)
	assignment := svc.AssignWorkflow(context.Background(), uuid.New(), uuid.New())

	assert.Equal(t, model.StatusApproved, assignment.Status)
	assert.Nil(t, assignment.WorkflowID)
}

func TestAssignWorkflowAutoApprovesOnEmptyWorkflow(t *testing.T) {
	workflows := newFakeWorkflowRepo()
	wf := &model.ApprovalWorkflow{Name: "empty", IsActive: true}
	workflows.addWorkflow(wf)
	workflows.active = wf

	svc := newWorkflowServiceForTest(workflows, nil)
	assignment := svc.AssignWorkflow(context.Background(), uuid.New(), uuid.New())

	assert.Equal(t, model.StatusApproved, assignment.Status)
}

func TestCanApprovePersonScopedIgnoresRole(t *testing.T) {
	designated := &model.Profile{ID: uuid.New(), RoleID: uuid.New()}
	sameRole := &model.Profile{ID: uuid.New(), RoleID: designated.RoleID}
	profiles := newFakeProfileRepo(designated, sameRole)

	step := &model.ApprovalStep{
		ApproverProfileID: &designated.ID,
		ApproverRoleID:    &designated.RoleID,
	}

	svc := newWorkflowServiceForTest(newFakeWorkflowRepo(), profiles)

	ok, err := svc.CanApprove(context.Background(), step, designated.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Holding the right role is not enough once a person is designated
	ok, err = svc.CanApprove(context.Background(), step, sameRole.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanApproveRoleScopedUsesCurrentRole(t *testing.T) {
	roleID := uuid.New()
	holder := &model.Profile{ID: uuid.New(), RoleID: roleID}
	reassigned := &model.Profile{ID: uuid.New(), RoleID: uuid.New()}
	profiles := newFakeProfileRepo(holder, reassigned)

	step := &model.ApprovalStep{ApproverRoleID: &roleID}

	svc := newWorkflowServiceForTest(newFakeWorkflowRepo(), profiles)

	ok, err := svc.CanApprove(context.Background(), step, holder.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanApprove(context.Background(), step, reassigned.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanApproveDeniesUnscopedStep(t *testing.T) {
	svc := newWorkflowServiceForTest(newFakeWorkflowRepo(), nil)

	ok, err := svc.CanApprove(context.Background(), &model.ApprovalStep{}, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanApprove(context.Background(), nil, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateWorkflowRejectsDuplicateOrders(t *testing.T) {
	approver := uuid.New().String()
	svc := newWorkflowServiceForTest(newFakeWorkflowRepo(), nil)

	_, err := svc.CreateWorkflow(context.Background(), CreateWorkflowDTO{
		Name:          "broken",
		RequestTypeID: uuid.New().String(),
		RoleID:        uuid.New().String(),
		Steps: []CreateStepDTO{
			{Name: "a", StepOrder: 1, ApproverProfileID: &approver},
			{Name: "b", StepOrder: 1, ApproverProfileID: &approver},
		},
	}, uuid.New())

	require.Error(t, err)
}

func TestCreateWorkflowRequiresApproverScope(t *testing.T) {
	svc := newWorkflowServiceForTest(newFakeWorkflowRepo(), nil)

	_, err := svc.CreateWorkflow(context.Background(), CreateWorkflowDTO{
		Name:          "unscoped",
		RequestTypeID: uuid.New().String(),
		RoleID:        uuid.New().String(),
		Steps:         []CreateStepDTO{{Name: "a", StepOrder: 1}},
	}, uuid.New())

	require.Error(t, err)
}
