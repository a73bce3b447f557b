package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/url"
	"time"
)

// EndpointPolicy maps a path pattern to the TTL and compression applied to
// responses cached for matching paths. Patterns support '*' wildcards, e.g.
// "/api/users/*". Policies are tried in registration order; first match wins.
type EndpointPolicy struct {
	Pattern  string
	TTL      time.Duration
	Compress bool
}

// ResponseCacheConfig configures the policy layer for API responses.
type ResponseCacheConfig struct {
	// Policies are scanned in order; the first structural match wins.
	Policies []EndpointPolicy
	// DefaultTTL and DefaultCompress apply when no policy matches.
	DefaultTTL      time.Duration
	DefaultCompress bool
	// MaxResponseSize caps cacheable response bodies outside production,
	// guarding against unbounded memory growth in development where the
	// remote tier may be absent. Zero disables the cap.
	MaxResponseSize int
	// Production disables the size ceiling.
	Production bool
}

// ResponseCache decides, per request, whether a response can be served from
// or stored into the cache, and under which key and policy. It owns the
// pattern-to-policy mapping and never touches tier internals; all storage
// goes through the Manager.
type ResponseCache struct {
	manager *Manager
	cfg     ResponseCacheConfig
}

// NewResponseCache creates the policy layer on top of a Manager.
func NewResponseCache(manager *Manager, cfg ResponseCacheConfig) *ResponseCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = manager.defaultTTL
	}
	return &ResponseCache{manager: manager, cfg: cfg}
}

// KeyFor builds the deterministic cache key for a request: method, path,
// caller identity (or the anonymous sentinel) and a hash of the query
// parameters. url.Values.Encode sorts keys, so requests differing only in
// parameter order collapse to the same key. The hash is FNV-1a: cheap and
// non-cryptographic, which is fine for a cache where a collision costs one
// extra miss, never wrong data.
func (rc *ResponseCache) KeyFor(method, path, callerID string, query url.Values) string {
	if callerID == "" {
		callerID = "anon"
	}
	h := fnv.New32a()
	h.Write([]byte(query.Encode()))
	return fmt.Sprintf("resp:%s:%s:%s:%08x", method, path, callerID, h.Sum32())
}

// PolicyFor resolves the TTL and compression flag for a request path.
func (rc *ResponseCache) PolicyFor(path string) (time.Duration, bool) {
	for _, p := range rc.cfg.Policies {
		if wildcardMatch(p.Pattern, path) {
			return p.TTL, p.Compress
		}
	}
	return rc.cfg.DefaultTTL, rc.cfg.DefaultCompress
}

// Cacheable reports whether a response may be stored. Error responses are
// never cached so a transient failure cannot be served stale, an explicit
// no-cache request wins, and outside production oversized bodies are
// rejected.
func (rc *ResponseCache) Cacheable(status int, noCache bool, size int) bool {
	if status >= 400 {
		return false
	}
	if noCache {
		return false
	}
	if !rc.cfg.Production && rc.cfg.MaxResponseSize > 0 && size > rc.cfg.MaxResponseSize {
		return false
	}
	return true
}

// Get returns the cached response body for key, if any.
func (rc *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return rc.manager.Get(ctx, key)
}

// Store caches a response body under key if the cacheability gate passes,
// applying the endpoint policy for path. Returns whether the response was
// stored. The body is expected to be serialized already (it is what went
// over the wire), so it is wrapped as json.RawMessage.
func (rc *ResponseCache) Store(ctx context.Context, path, key string, body []byte, status int, noCache bool) bool {
	if !rc.Cacheable(status, noCache, len(body)) {
		return false
	}
	if !json.Valid(body) {
		// Only JSON responses are cached; the wire format of both tiers
		// is serialized text.
		return false
	}
	ttl, compress := rc.PolicyFor(path)
	if err := rc.manager.Set(ctx, key, json.RawMessage(body), Options{TTL: ttl, Compress: compress}); err != nil {
		return false
	}
	return true
}

// Invalidate removes all cached responses whose key matches the glob-style
// pattern, on both tiers. Returns the number of memory-tier entries removed.
func (rc *ResponseCache) Invalidate(ctx context.Context, pattern string) int {
	return rc.manager.DeleteMatching(ctx, pattern)
}

// Clear wipes the whole cache, both tiers, and resets statistics.
func (rc *ResponseCache) Clear(ctx context.Context) {
	rc.manager.Clear(ctx)
}
