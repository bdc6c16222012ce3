package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dat3K/viet-anh-supply-be/internal/cache"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRequestService struct {
	create  func(ctx context.Context, req service.CreateRequestDTO, requesterID, roleID uuid.UUID) (*service.RequestResponse, error)
	history func(ctx context.Context, requesterID uuid.UUID, filter repository.HistoryFilter) ([]service.RequestResponse, int64, error)
}

func (s *stubRequestService) CreateRequest(ctx context.Context, req service.CreateRequestDTO, requesterID, roleID uuid.UUID) (*service.RequestResponse, error) {
	return s.create(ctx, req, requesterID, roleID)
}

func (s *stubRequestService) History(ctx context.Context, requesterID uuid.UUID, filter repository.HistoryFilter) ([]service.RequestResponse, int64, error) {
	return s.history(ctx, requesterID, filter)
}

func (s *stubRequestService) GetRequest(context.Context, string) (*service.RequestResponse, error) {
	return nil, errors.New("not wired")
}

func (s *stubRequestService) CancelRequest(context.Context, string, service.CancelRequestDTO, uuid.UUID) (*service.RequestResponse, error) {
	return nil, errors.New("not wired")
}

func (s *stubRequestService) CopyRequest(context.Context, string, uuid.UUID, uuid.UUID) (*service.RequestResponse, error) {
	return nil, errors.New("not wired")
}

func (s *stubRequestService) AddItem(context.Context, string, service.CreateItemDTO, uuid.UUID) (*service.RequestResponse, error) {
	return nil, errors.New("not wired")
}

func (s *stubRequestService) UpdateItem(context.Context, string, service.ItemEditDTO, uuid.UUID) (*service.RequestResponse, error) {
	return nil, errors.New("not wired")
}

func (s *stubRequestService) RemoveItem(context.Context, string, string, uuid.UUID) (*service.RequestResponse, error) {
	return nil, errors.New("not wired")
}

func testContext(t *testing.T, profileID, roleID uuid.UUID, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body != nil {
		c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Set("userID", profileID.String())
	c.Set("userRoleID", roleID.String())
	return c, w
}

const createBody = `{"title":"markers","request_type_id":"11111111-1111-1111-1111-111111111111","items":[{"name":"markers","quantity":2}]}`

func TestCreateRequestOptimisticEntryVisibleToDefaultHistoryRead(t *testing.T) {
	store := cache.NewStore()
	runner := cache.NewRunner(store)
	profileID := uuid.New()
	roleID := uuid.New()

	var duringCommit historyPage
	stub := &stubRequestService{
		history: func(context.Context, uuid.UUID, repository.HistoryFilter) ([]service.RequestResponse, int64, error) {
			return nil, 0, nil
		},
		create: func(context.Context, service.CreateRequestDTO, uuid.UUID, uuid.UUID) (*service.RequestResponse, error) {
			// Snapshot what a concurrent default history read would serve
			// while the write is still in flight
			cached, fresh, ok := store.Get(defaultHistoryKey(profileID.String()))
			require.True(t, ok, "optimistic entry must land in the partition history reads from")
			require.True(t, fresh)
			duringCommit = cached.(historyPage)
			return &service.RequestResponse{ID: uuid.New().String(), Title: "markers"}, nil
		},
	}
	h := NewRequestHandler(stub, runner)

	// Prime the default history partition through the read path
	c, w := testContext(t, profileID, roleID, http.MethodGet, "/requests/history", nil)
	h.History(c)
	require.Equal(t, http.StatusOK, w.Code)
	_, fresh, ok := store.Get(defaultHistoryKey(profileID.String()))
	require.True(t, ok, "read path and optimistic write must share one partition key")
	require.True(t, fresh)

	// A pending partition elsewhere should go stale when the request lands
	pendingKey := cache.Key{Entity: cacheEntityPending, UserID: uuid.NewString()}
	store.Set(pendingKey, []service.RequestResponse{})

	c, w = testContext(t, profileID, roleID, http.MethodPost, "/requests", []byte(createBody))
	h.CreateRequest(c)
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, duringCommit.Items, 1)
	assert.True(t, cache.IsTempID(duringCommit.Items[0].ID))
	assert.Equal(t, "markers", duringCommit.Items[0].Title)
	assert.EqualValues(t, 1, duringCommit.Total)

	_, fresh, _ = store.Get(defaultHistoryKey(profileID.String()))
	assert.False(t, fresh, "settled partition refetches on the next read")
	_, fresh, _ = store.Get(pendingKey)
	assert.False(t, fresh, "pending views across users go stale")
}

func TestCreateRequestRollsBackOptimisticEntryOnFailure(t *testing.T) {
	store := cache.NewStore()
	runner := cache.NewRunner(store)
	profileID := uuid.New()
	roleID := uuid.New()

	primed := historyPage{Items: []service.RequestResponse{{ID: uuid.NewString(), Title: "existing"}}, Total: 1}
	stub := &stubRequestService{
		history: func(context.Context, uuid.UUID, repository.HistoryFilter) ([]service.RequestResponse, int64, error) {
			return primed.Items, primed.Total, nil
		},
		create: func(context.Context, service.CreateRequestDTO, uuid.UUID, uuid.UUID) (*service.RequestResponse, error) {
			return nil, errors.New("insert failed")
		},
	}
	h := NewRequestHandler(stub, runner)

	c, w := testContext(t, profileID, roleID, http.MethodGet, "/requests/history", nil)
	h.History(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = testContext(t, profileID, roleID, http.MethodPost, "/requests", []byte(createBody))
	h.CreateRequest(c)
	require.NotEqual(t, http.StatusCreated, w.Code)

	cached, _, ok := store.Get(defaultHistoryKey(profileID.String()))
	require.True(t, ok)
	page := cached.(historyPage)
	require.Len(t, page.Items, 1, "temp entry rolled back")
	assert.Equal(t, "existing", page.Items[0].Title)
	assert.False(t, cache.IsTempID(page.Items[0].ID))
}
