// Package handlers implements the HTTP API: health, cache statistics and
// administration, and the focus-session endpoints that exercise the cache.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"focuscache/internal/auth"
	"focuscache/internal/cache"
	"focuscache/internal/common/logging"
	"focuscache/internal/database"
)

type Handlers struct {
	manager   *cache.Manager
	responses *cache.ResponseCache
	queries   *cache.QueryCache
	store     *database.Store
	logger    logging.Logger
	started   time.Time
}

func New(manager *cache.Manager, responses *cache.ResponseCache, queries *cache.QueryCache, store *database.Store, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		manager:   manager,
		responses: responses,
		queries:   queries,
		store:     store,
		logger:    logger,
		started:   time.Now(),
	}
}

// Health reports service liveness and remote-tier connectivity. The remote
// tier being down is not unhealthy: the cache degrades to memory-only.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"remote_cache":   h.manager.RemoteHealthy(r.Context()),
	})
}

// CacheStats surfaces the cache counters for operational dashboards:
// per-tier hit/miss/set/deletion counts, hit rate, memory entry count,
// remote connectivity and per-query-signature statistics.
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache":            h.manager.Stats(),
		"entries":          h.manager.EntryCount(),
		"remote_healthy":   h.manager.RemoteHealthy(r.Context()),
		"query_signatures": h.queries.SignatureStats(),
	})
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
}

// InvalidateCache removes cached entries matching a glob-style pattern from
// both tiers.
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a non-empty pattern")
		return
	}

	removed := h.responses.Invalidate(r.Context(), req.Pattern)
	h.logger.Info("cache invalidated",
		logging.String("pattern", req.Pattern),
		logging.Int("removed", removed))

	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// ClearCache wipes both tiers and resets statistics.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.responses.Clear(r.Context())
	h.logger.Info("cache cleared")
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// RunCleanup triggers an expired-entry sweep outside the regular schedule.
func (h *Handlers) RunCleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.manager.Cleanup(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

type createSessionRequest struct {
	ID           string `json:"id"`
	FocusMinutes int    `json:"focus_minutes"`
}

// CreateSession records a completed focus session for the caller.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := auth.CallerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.FocusMinutes < 1 {
		writeError(w, http.StatusBadRequest, "id and a positive focus_minutes are required")
		return
	}

	sess := &database.Session{
		ID:           req.ID,
		UserID:       userID,
		FocusMinutes: req.FocusMinutes,
		StartedAt:    time.Now(),
	}
	if err := h.store.CreateSession(r.Context(), sess); err != nil {
		h.logger.Error("failed to create session", err, logging.String("user_id", userID))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// GetSession returns one session by id.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.store.GetSession(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load session", err, logging.String("session_id", id))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// ListSessions returns the caller's recent sessions.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := auth.CallerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessions, err := h.store.SessionsForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list sessions", err, logging.String("user_id", userID))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
