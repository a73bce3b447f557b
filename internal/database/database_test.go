package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuscache/internal/cache"
)

func setupStore(t *testing.T) (*Store, *cache.Manager) {
	t.Helper()

	manager := cache.NewManager(nil, cache.ManagerConfig{
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, nil)
	queries := cache.NewQueryCache(manager)

	store, err := Open(":memory:", queries)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, manager
}

func TestStore_CreateAndGet(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	sess := &Session{
		ID:           "s1",
		UserID:       "user-1",
		FocusMinutes: 25,
		StartedAt:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateSession(ctx, sess))

	loaded, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.Equal(t, 25, loaded.FocusMinutes)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RepeatReadsHitCache(t *testing.T) {
	store, manager := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &Session{ID: "s1", UserID: "user-1", FocusMinutes: 25}))

	_, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)

	hitsBefore := manager.Stats().Hits.Memory
	_, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)

	assert.Greater(t, manager.Stats().Hits.Memory, hitsBefore,
		"the second read must be served by the query cache")
}

func TestStore_WritesInvalidateQueryCache(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &Session{ID: "s1", UserID: "user-1", FocusMinutes: 25}))

	sessions, err := store.SessionsForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// A second session must show up despite the memoized list.
	require.NoError(t, store.CreateSession(ctx, &Session{ID: "s2", UserID: "user-1", FocusMinutes: 50}))

	sessions, err = store.SessionsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestStore_Validation(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	assert.Error(t, store.CreateSession(ctx, &Session{UserID: "user-1"}))
	assert.Error(t, store.CreateSession(ctx, &Session{ID: "s1"}))
}
