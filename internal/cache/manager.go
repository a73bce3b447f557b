// Package cache implements a two-tier response and query cache: a fast
// in-process memory tier backed by an optional shared Redis-compatible
// remote tier. Reads check memory first and fall through to the remote
// store, promoting remote hits back into memory. Writes go to both tiers.
//
// The cache is an optimization over an authoritative source, never a
// correctness dependency: every internal failure (remote connectivity,
// corrupt payloads, serialization) is absorbed, logged and converted into
// a miss so callers always fall through to their source of truth.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"focuscache/internal/common/logging"
)

// CompressionThreshold is the serialized size above which a payload is
// gzip-compressed when the caller asks for compression.
const CompressionThreshold = 1024

// RemoteStore is the remote-tier command surface the manager needs. It is
// satisfied by redis.Client; tests substitute failing or counting fakes.
type RemoteStore interface {
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	Health(ctx context.Context) error
}

// Options controls a single Set call.
type Options struct {
	// TTL is the entry's time-to-live. Zero means the manager default.
	TTL time.Duration
	// Compress enables gzip for payloads above CompressionThreshold.
	Compress bool
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// KeyPrefix namespaces every remote-tier key so the shared store can
	// serve other consumers without collisions.
	KeyPrefix string
	// DefaultTTL applies when a Set call does not specify one.
	DefaultTTL time.Duration
	// Clock overrides time.Now, for expiry tests.
	Clock func() time.Time
}

// Manager orchestrates get/set/delete across the memory and remote tiers.
// It exclusively owns the memory map and the remote connection handle.
// A nil remote store means memory-only operation; a remote store that fails
// at runtime degrades to the same memory-only behavior per call.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	remote     RemoteStore
	prefix     string
	defaultTTL time.Duration
	now        func() time.Time
	logger     logging.Logger

	stats stats
}

// NewManager creates a Manager. remote may be nil for memory-only operation.
func NewManager(remote RemoteStore, cfg ManagerConfig, logger logging.Logger) *Manager {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		entries:    make(map[string]*Entry),
		remote:     remote,
		prefix:     cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Clock,
		logger:     logger,
	}
}

// Set stores a value in the memory tier and, when available, the remote
// tier. The value is JSON-serialized; callers holding pre-serialized bytes
// can pass json.RawMessage to avoid double encoding. An empty key or a
// negative TTL is a caller bug and is rejected synchronously. A remote-tier
// write failure is logged, never returned: the memory write has already
// succeeded and that is the guarantee callers depend on.
func (m *Manager) Set(ctx context.Context, key string, value interface{}, opts Options) error {
	if key == "" {
		return fmt.Errorf("cache key must not be empty")
	}
	if opts.TTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = m.defaultTTL
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache value: %w", err)
	}

	compressed := false
	if opts.Compress && len(payload) > CompressionThreshold {
		if packed, err := compressPayload(payload); err == nil {
			payload = packed
			compressed = true
		} else {
			m.logger.Warn("payload compression failed, storing uncompressed",
				logging.String("key", key), logging.Err(err))
		}
	}

	entry := &Entry{
		Payload:    payload,
		StoredAt:   m.now(),
		TTL:        ttl,
		Compressed: compressed,
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	atomic.AddInt64(&m.stats.memSets, 1)

	if m.remote != nil {
		if err := m.setRemote(ctx, key, entry); err != nil {
			m.logger.Warn("remote cache write failed, entry kept in memory only",
				logging.String("key", key), logging.Err(err))
		} else {
			atomic.AddInt64(&m.stats.remoteSets, 1)
		}
	}

	return nil
}

func (m *Manager) setRemote(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(toWire(entry))
	if err != nil {
		return fmt.Errorf("failed to serialize remote entry: %w", err)
	}
	return m.remote.SetEx(ctx, m.prefix+key, string(data), entry.TTL)
}

// Get returns the serialized payload for key, decompressed if necessary.
// A miss, an expired entry, remote unavailability and a corrupt payload all
// return found=false; none of them is an error. A remote hit is promoted
// into the memory tier so subsequent reads skip the network round-trip.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if ok {
		if !entry.Expired(now) {
			if data, err := m.unpack(entry); err == nil {
				atomic.AddInt64(&m.stats.memHits, 1)
				return data, true
			}
			// Corrupt payload: drop it and keep looking.
			m.logger.Warn("dropping corrupt memory cache entry", logging.String("key", key))
			m.evict(key, entry)
		} else {
			m.evict(key, entry)
		}
	}
	atomic.AddInt64(&m.stats.memMisses, 1)

	if m.remote != nil {
		if data, ok := m.getRemote(ctx, key, now); ok {
			atomic.AddInt64(&m.stats.remoteHits, 1)
			return data, true
		}
		atomic.AddInt64(&m.stats.remoteMisses, 1)
	}

	atomic.AddInt64(&m.stats.totalMisses, 1)
	return nil, false
}

func (m *Manager) getRemote(ctx context.Context, key string, now time.Time) ([]byte, bool) {
	raw, found, err := m.remote.Get(ctx, m.prefix+key)
	if err != nil {
		m.logger.Warn("remote cache read failed, treating as miss",
			logging.String("key", key), logging.Err(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var wire wireEntry
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		// Poisoned entry: delete it so nobody else trips over it.
		m.logger.Warn("deleting corrupt remote cache entry",
			logging.String("key", key), logging.Err(err))
		m.deleteRemote(ctx, key)
		return nil, false
	}

	entry := fromWire(wire)
	if entry.Expired(now) {
		if m.deleteRemote(ctx, key) {
			atomic.AddInt64(&m.stats.remoteDeletions, 1)
		}
		return nil, false
	}

	data, err := m.unpack(entry)
	if err != nil {
		m.logger.Warn("deleting undecodable remote cache entry",
			logging.String("key", key), logging.Err(err))
		m.deleteRemote(ctx, key)
		return nil, false
	}

	// Promote into memory so the next read is served locally.
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	return data, true
}

// GetJSON looks up key and unmarshals the cached payload into dest.
// Returns false on any miss, including an unparseable payload.
func (m *Manager) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	data, ok := m.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		m.logger.Warn("cached payload does not match destination type",
			logging.String("key", key), logging.Err(err))
		m.Delete(ctx, key)
		return false
	}
	return true
}

// Delete removes key from both tiers. Removing an absent key is a no-op and
// does not change the deletion counters.
func (m *Manager) Delete(ctx context.Context, key string) {
	m.mu.Lock()
	_, existed := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()
	if existed {
		atomic.AddInt64(&m.stats.memDeletions, 1)
	}

	if m.remote != nil {
		if m.deleteRemote(ctx, key) {
			atomic.AddInt64(&m.stats.remoteDeletions, 1)
		}
	}
}

func (m *Manager) deleteRemote(ctx context.Context, key string) bool {
	removed, err := m.remote.Delete(ctx, m.prefix+key)
	if err != nil {
		m.logger.Warn("remote cache delete failed",
			logging.String("key", key), logging.Err(err))
		return false
	}
	return removed > 0
}

// DeleteMatching removes every entry whose key matches the glob-style
// pattern (with '*' wildcards) from both tiers. Returns the number of
// memory-tier entries removed. The remote side costs a KEYS scan, so this
// belongs on administrative paths, not hot paths.
func (m *Manager) DeleteMatching(ctx context.Context, pattern string) int {
	m.mu.Lock()
	removed := 0
	for key := range m.entries {
		if wildcardMatch(pattern, key) {
			delete(m.entries, key)
			removed++
		}
	}
	m.mu.Unlock()
	atomic.AddInt64(&m.stats.memDeletions, int64(removed))

	if m.remote != nil {
		keys, err := m.remote.Keys(ctx, m.prefix+pattern)
		if err != nil {
			m.logger.Warn("remote cache pattern scan failed",
				logging.String("pattern", pattern), logging.Err(err))
			return removed
		}
		if len(keys) > 0 {
			n, err := m.remote.Delete(ctx, keys...)
			if err != nil {
				m.logger.Warn("remote cache pattern delete failed",
					logging.String("pattern", pattern), logging.Err(err))
			} else {
				atomic.AddInt64(&m.stats.remoteDeletions, n)
			}
		}
	}

	return removed
}

// Clear empties the memory tier, deletes every namespaced remote key and
// resets all statistics. Intended for tests and administrative reset.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]*Entry)
	m.mu.Unlock()

	if m.remote != nil {
		keys, err := m.remote.Keys(ctx, m.prefix+"*")
		if err != nil {
			m.logger.Warn("remote cache clear scan failed", logging.Err(err))
		} else if len(keys) > 0 {
			if _, err := m.remote.Delete(ctx, keys...); err != nil {
				m.logger.Warn("remote cache clear failed", logging.Err(err))
			}
		}
	}

	m.stats.reset()
}

// Cleanup sweeps both tiers and removes only expired entries, bounding
// memory growth from entries that are never re-read (expiry is otherwise
// lazy). Returns the number of entries removed. Safe to run concurrently
// with reads and writes: a racing Get either finds an entry before the
// sweep or misses after it.
func (m *Manager) Cleanup(ctx context.Context) int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	m.mu.Unlock()
	atomic.AddInt64(&m.stats.memDeletions, int64(removed))

	if m.remote != nil {
		removed += m.cleanupRemote(ctx, now)
	}

	if removed > 0 {
		m.logger.Debug("cache cleanup removed expired entries", logging.Int("removed", removed))
	}
	return removed
}

// cleanupRemote is mostly belt and braces: SETEX already expires remote
// entries server-side, so this only catches envelopes whose recorded TTL
// disagrees with the server clock.
func (m *Manager) cleanupRemote(ctx context.Context, now time.Time) int {
	keys, err := m.remote.Keys(ctx, m.prefix+"*")
	if err != nil {
		m.logger.Warn("remote cache cleanup scan failed", logging.Err(err))
		return 0
	}

	removed := 0
	for _, fullKey := range keys {
		raw, found, err := m.remote.Get(ctx, fullKey)
		if err != nil || !found {
			continue
		}
		var wire wireEntry
		expired := json.Unmarshal([]byte(raw), &wire) != nil || fromWire(wire).Expired(now)
		if expired {
			if n, err := m.remote.Delete(ctx, fullKey); err == nil && n > 0 {
				removed++
				atomic.AddInt64(&m.stats.remoteDeletions, 1)
			}
		}
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() StatsSnapshot {
	return m.stats.snapshot()
}

// EntryCount returns the current number of memory-tier entries, expired or not.
func (m *Manager) EntryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RemoteHealthy reports whether a remote tier is configured and reachable.
func (m *Manager) RemoteHealthy(ctx context.Context) bool {
	if m.remote == nil {
		return false
	}
	return m.remote.Health(ctx) == nil
}

// evict removes an expired or corrupt entry found during a read. The
// pointer comparison under the write lock covers a concurrent Set that
// replaced the entry between our read and this eviction.
func (m *Manager) evict(key string, stale *Entry) {
	m.mu.Lock()
	if current, ok := m.entries[key]; ok && current == stale {
		delete(m.entries, key)
		atomic.AddInt64(&m.stats.memDeletions, 1)
	}
	m.mu.Unlock()
}

func (m *Manager) unpack(entry *Entry) ([]byte, error) {
	if !entry.Compressed {
		return entry.Payload, nil
	}
	return decompressPayload(entry.Payload)
}

func compressPayload(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressPayload(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// wildcardMatch matches s against a glob-style pattern where '*' matches
// any run of characters. Used for memory-tier pattern invalidation; the
// remote tier applies the same pattern through KEYS.
func wildcardMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}

	return strings.HasSuffix(s, parts[len(parts)-1])
}
