package inventory

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ledgerhouse/ledgerhouse/internal/rbac"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

type memoryKeyRegistrar struct {
	keys     map[string]string
	released []string
}

func newMemoryKeyRegistrar() *memoryKeyRegistrar {
	return &memoryKeyRegistrar{keys: map[string]string{}}
}

func (m *memoryKeyRegistrar) Register(_ context.Context, key, module string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryKeyRegistrar) Release(_ context.Context, key string) error {
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

func adjustmentHTTPRequest(itemID int64, body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/items/"+strconv.FormatInt(itemID, 10)+"/adjustments", bytes.NewBufferString(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", strconv.FormatInt(itemID, 10))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	if key != "" {
		req.Header.Set(shared.IdempotencyKeyHeader, key)
	}
	return req
}

func TestPostAdjustmentHonoursIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(10, 2)
	svc := NewService(repo, nil, nil, slog.Default())
	keys := newMemoryKeyRegistrar()
	h := NewHandler(slog.Default(), svc, rbac.Middleware{}, keys)

	body := `{"mode":"increase","quantity":5,"reason":"stocktake"}`

	rec := httptest.NewRecorder()
	h.postAdjustment(rec, adjustmentHTTPRequest(itemID, body, "adj-001"))
	require.Equal(t, http.StatusCreated, rec.Code)

	item, err := repo.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	require.InDelta(t, 15.0, item.CurrentStock, 0.001)

	rec = httptest.NewRecorder()
	h.postAdjustment(rec, adjustmentHTTPRequest(itemID, body, "adj-001"))
	require.Equal(t, http.StatusConflict, rec.Code)

	item, err = repo.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	require.InDelta(t, 15.0, item.CurrentStock, 0.001)
	require.Len(t, repo.movements, 1)
}

func TestPostAdjustmentReleasesKeyOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, slog.Default())
	keys := newMemoryKeyRegistrar()
	h := NewHandler(slog.Default(), svc, rbac.Middleware{}, keys)

	body := `{"mode":"increase","quantity":5,"reason":"stocktake"}`

	rec := httptest.NewRecorder()
	h.postAdjustment(rec, adjustmentHTTPRequest(99, body, "adj-002"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, []string{"adj-002"}, keys.released)

	itemID := repo.addItem(10, 2)

	rec = httptest.NewRecorder()
	h.postAdjustment(rec, adjustmentHTTPRequest(itemID, body, "adj-002"))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestPostAdjustmentWithoutKeyOrRegistrar(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(4, 1)
	svc := NewService(repo, nil, nil, slog.Default())
	h := NewHandler(slog.Default(), svc, rbac.Middleware{}, nil)

	body := `{"mode":"decrease","quantity":1,"reason":"breakage"}`
	rec := httptest.NewRecorder()
	h.postAdjustment(rec, adjustmentHTTPRequest(itemID, body, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
}
