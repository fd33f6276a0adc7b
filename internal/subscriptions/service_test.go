package subscriptions

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/rbac"
	"github.com/agentacademy/academy/internal/shared"
	"github.com/agentacademy/academy/internal/tiers"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	gets    int
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]Record{}}
}

func (m *memoryStore) Get(_ context.Context, userID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return Record{}, m.err
	}
	rec, ok := m.records[userID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *memoryStore) Upsert(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := newMemoryStore()
	svc := NewService(store, NewCache(client, time.Minute), nil)
	svc.clock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store, mr
}

func TestRecordViewer(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	v, err := Record{Status: StatusActive, Tier: "premium", CurrentPeriodEnd: &future}.Viewer(now)
	require.NoError(t, err)
	require.Equal(t, access.Subscriber(access.TierPtr(tiers.Premium)), v)

	v, err = Record{Status: StatusTrialing, Tier: "enterprise"}.Viewer(now)
	require.NoError(t, err)
	require.Equal(t, tiers.Business, *v.Tier)

	v, err = Record{Status: StatusCanceled, Tier: "business"}.Viewer(now)
	require.NoError(t, err)
	require.Equal(t, access.Anonymous(), v)

	v, err = Record{Status: StatusActive, Tier: "business", CurrentPeriodEnd: &past}.Viewer(now)
	require.NoError(t, err)
	require.False(t, v.Subscribed)

	v, err = Record{Status: StatusActive}.Viewer(now)
	require.NoError(t, err)
	require.True(t, v.Subscribed)
	require.Nil(t, v.Tier)

	v, err = Record{Status: StatusActive, Tier: "platinum"}.Viewer(now)
	require.ErrorIs(t, err, tiers.ErrUnknownTier)
	require.True(t, v.Subscribed)
	require.Nil(t, v.Tier)
}

func TestViewerForUsesCache(t *testing.T) {
	svc, store, mr := newTestService(t)
	ctx := context.Background()
	store.records["u1"] = Record{UserID: "u1", Status: StatusActive, Tier: "enhanced"}

	v := svc.ViewerFor(ctx, "u1")
	require.Equal(t, tiers.Enhanced, *v.Tier)
	require.True(t, mr.Exists("subscription:u1"))

	v = svc.ViewerFor(ctx, "u1")
	require.Equal(t, tiers.Enhanced, *v.Tier)
	require.Equal(t, 1, store.gets)
}

func TestViewerForFailsClosed(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.Equal(t, access.Anonymous(), svc.ViewerFor(ctx, ""))
	require.Equal(t, access.Anonymous(), svc.ViewerFor(ctx, "missing"))

	store.err = errors.New("connection refused")
	require.Equal(t, access.Anonymous(), svc.ViewerFor(ctx, "u2"))
}

func TestViewerForSurvivesCacheOutage(t *testing.T) {
	svc, store, mr := newTestService(t)
	store.records["u1"] = Record{UserID: "u1", Status: StatusActive, Tier: "core"}
	mr.Close()

	v := svc.ViewerFor(context.Background(), "u1")
	require.Equal(t, tiers.Core, *v.Tier)
}

func TestUpsertValidatesAndInvalidates(t *testing.T) {
	svc, store, mr := newTestService(t)
	ctx := context.Background()
	store.records["u1"] = Record{UserID: "u1", Status: StatusActive, Tier: "core"}
	_ = svc.ViewerFor(ctx, "u1")
	require.True(t, mr.Exists("subscription:u1"))

	rec, err := svc.Upsert(ctx, "u1", UpsertInput{Status: "active", Tier: "Basic"})
	require.NoError(t, err)
	require.Equal(t, "core", rec.Tier)
	require.False(t, mr.Exists("subscription:u1"))

	_, err = svc.Upsert(ctx, "u1", UpsertInput{Status: "frozen"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upsert(ctx, "u1", UpsertInput{Status: "active", Tier: "gold"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upsert(ctx, " ", UpsertInput{Status: "active"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestHandler(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.records["u1"] = Record{UserID: "u1", Status: StatusActive, Tier: "premium"}
	r := chi.NewRouter()
	NewHandler(nil, svc, rbac.Middleware{Service: rbac.NewService()}).MountRoutes(r)

	do := func(method, path string, body []byte, p *shared.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		if p != nil {
			req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/me/subscription", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"subscribed":false}`, rec.Body.String())

	rec = do(http.MethodGet, "/me/subscription", nil, &shared.Principal{UserID: "u1", Role: shared.RoleMember})
	require.JSONEq(t, `{"subscribed":true,"tier":"premium","tier_label":"Premium"}`, rec.Body.String())

	body := []byte(`{"status":"active","tier":"business"}`)
	rec = do(http.MethodPut, "/admin/subscriptions/u2", body, &shared.Principal{UserID: "u1", Role: shared.RoleMember})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(http.MethodPut, "/admin/subscriptions/u2", body, &shared.Principal{UserID: "a", Role: shared.RoleAdmin})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "business", store.records["u2"].Tier)

	rec = do(http.MethodPut, "/admin/subscriptions/u2", []byte(`{"status":"nope"}`), &shared.Principal{UserID: "a", Role: shared.RoleAdmin})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
