package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuscache/internal/cache"
)

func newCachedRouter(t *testing.T, handler http.HandlerFunc) (*mux.Router, *cache.ResponseCache) {
	t.Helper()

	manager := cache.NewManager(nil, cache.ManagerConfig{
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, nil)
	responses := cache.NewResponseCache(manager, cache.ResponseCacheConfig{
		DefaultTTL: time.Minute,
	})

	router := mux.NewRouter()
	router.Use(CachingMiddleware(responses))
	router.HandleFunc("/api/sessions/{id}", handler).Methods("GET", "POST")
	return router, responses
}

func doRequest(router *mux.Router, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCachingMiddleware_MissThenHit(t *testing.T) {
	calls := 0
	router, _ := newCachedRouter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"calls":%d}`, calls)
	})

	first := doRequest(router, "GET", "/api/sessions/1", nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, first.Body.String())

	second := doRequest(router, "GET", "/api/sessions/1", nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, second.Body.String(), "the cached body must be served verbatim")
	assert.Equal(t, 1, calls, "the handler must not run on a cache hit")
}

func TestCachingMiddleware_KeysIncludeCallerAndQuery(t *testing.T) {
	calls := 0
	router, _ := newCachedRouter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{}`)
	})

	doRequest(router, "GET", "/api/sessions/1", map[string]string{"X-User-ID": "user-1"})
	doRequest(router, "GET", "/api/sessions/1", map[string]string{"X-User-ID": "user-2"})
	assert.Equal(t, 2, calls, "different callers must not share cache entries")

	doRequest(router, "GET", "/api/sessions/1?page=2", map[string]string{"X-User-ID": "user-1"})
	assert.Equal(t, 3, calls, "different query parameters must not share cache entries")

	doRequest(router, "GET", "/api/sessions/1", map[string]string{"X-User-ID": "user-1"})
	assert.Equal(t, 3, calls)
}

func TestCachingMiddleware_ErrorsNotCached(t *testing.T) {
	calls := 0
	router, _ := newCachedRouter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"boom"}`)
	})

	first := doRequest(router, "GET", "/api/sessions/1", nil)
	require.Equal(t, http.StatusInternalServerError, first.Code)

	second := doRequest(router, "GET", "/api/sessions/1", nil)
	assert.Equal(t, http.StatusInternalServerError, second.Code)
	assert.Equal(t, 2, calls, "error responses must never be served from cache")
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
}

func TestCachingMiddleware_NoCacheBypasses(t *testing.T) {
	calls := 0
	router, _ := newCachedRouter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{}`)
	})

	headers := map[string]string{"Cache-Control": "no-cache"}
	doRequest(router, "GET", "/api/sessions/1", headers)
	doRequest(router, "GET", "/api/sessions/1", headers)
	assert.Equal(t, 2, calls, "no-cache requests must neither read nor populate the cache")

	// The no-cache responses were not stored either.
	third := doRequest(router, "GET", "/api/sessions/1", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestCachingMiddleware_OnlyGET(t *testing.T) {
	calls := 0
	router, _ := newCachedRouter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{}`)
	})

	first := doRequest(router, "POST", "/api/sessions/1", nil)
	assert.Empty(t, first.Header().Get("X-Cache"))

	doRequest(router, "POST", "/api/sessions/1", nil)
	assert.Equal(t, 2, calls)
}
