package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuscache/internal/cache"
	"focuscache/internal/database"
)

func setupHandlers(t *testing.T) (*Handlers, *cache.Manager) {
	t.Helper()

	manager := cache.NewManager(nil, cache.ManagerConfig{
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, nil)
	responses := cache.NewResponseCache(manager, cache.ResponseCacheConfig{DefaultTTL: time.Minute})
	queries := cache.NewQueryCache(manager)

	store, err := database.Open(":memory:", queries)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(manager, responses, queries, store, nil), manager
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	h, _ := setupHandlers(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["remote_cache"], "no remote tier is configured in this test")
}

func TestCacheStats(t *testing.T) {
	h, manager := setupHandlers(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", 1, cache.Options{}))
	manager.Get(ctx, "a")
	manager.Get(ctx, "missing")

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest("GET", "/api/cache/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	stats := body["cache"].(map[string]interface{})
	hits := stats["hits"].(map[string]interface{})
	misses := stats["misses"].(map[string]interface{})
	assert.Equal(t, float64(1), hits["total"])
	assert.Equal(t, float64(1), misses["total"])
	assert.Equal(t, float64(50), stats["hit_rate"])
	assert.Equal(t, float64(1), body["entries"])
}

func TestInvalidateCache(t *testing.T) {
	h, manager := setupHandlers(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "resp:GET:/api/sessions:anon:1", 1, cache.Options{}))
	require.NoError(t, manager.Set(ctx, "resp:GET:/api/other:anon:1", 2, cache.Options{}))

	t.Run("pattern removes matching entries", func(t *testing.T) {
		payload := bytes.NewBufferString(`{"pattern":"resp:GET:/api/sessions:*"}`)
		rec := httptest.NewRecorder()
		h.InvalidateCache(rec, httptest.NewRequest("POST", "/api/cache/invalidate", payload))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decodeBody(t, rec)["removed"])
		assert.Equal(t, 1, manager.EntryCount())
	})

	t.Run("empty pattern rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.InvalidateCache(rec, httptest.NewRequest("POST", "/api/cache/invalidate", bytes.NewBufferString(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRunCleanup(t *testing.T) {
	h, _ := setupHandlers(t)

	rec := httptest.NewRecorder()
	h.RunCleanup(rec, httptest.NewRequest("POST", "/api/cache/cleanup", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["removed"])
}

func TestSessions(t *testing.T) {
	h, _ := setupHandlers(t)

	router := mux.NewRouter()
	router.HandleFunc("/api/sessions", h.CreateSession).Methods("POST")
	router.HandleFunc("/api/sessions", h.ListSessions).Methods("GET")
	router.HandleFunc("/api/sessions/{id}", h.GetSession).Methods("GET")

	t.Run("create requires authentication", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/sessions", bytes.NewBufferString(`{"id":"s1","focus_minutes":25}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create and fetch", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/sessions", bytes.NewBufferString(`{"id":"s1","focus_minutes":25}`))
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/s1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", decodeBody(t, rec)["user_id"])
	})

	t.Run("missing session is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list for caller", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/sessions", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var sessions []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
		assert.Len(t, sessions, 1)
	})

	t.Run("invalid body rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/sessions", bytes.NewBufferString(`{"id":"","focus_minutes":0}`))
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
