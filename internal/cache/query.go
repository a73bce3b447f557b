package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// signatureLength is how many normalized characters identify a query shape
// for statistics. Parameter variations of the same query share a signature.
const signatureLength = 50

// SignatureStat accumulates hit/miss counts for one query shape.
type SignatureStat struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// QueryCache memoizes expensive read-query results keyed by normalized query
// text plus parameters, layered on the Manager. It additionally tracks
// per-signature hit rates so operators can see which query shapes benefit
// most from caching. Matching is exact after normalization (trim, lowercase,
// whitespace collapse); there is no query-plan-aware equivalence.
type QueryCache struct {
	manager *Manager

	mu         sync.Mutex
	signatures map[string]*SignatureStat
}

// NewQueryCache creates a query-result cache on top of a Manager.
func NewQueryCache(manager *Manager) *QueryCache {
	return &QueryCache{
		manager:    manager,
		signatures: make(map[string]*SignatureStat),
	}
}

// Get looks up the cached result for a query and parameter list and
// unmarshals it into dest. Any internal failure is a miss.
func (qc *QueryCache) Get(ctx context.Context, query string, params []interface{}, dest interface{}) bool {
	normalized := normalizeQuery(query)
	key, err := queryKey(normalized, params)
	if err != nil {
		qc.record(normalized, false)
		return false
	}

	ok := qc.manager.GetJSON(ctx, key, dest)
	qc.record(normalized, ok)
	return ok
}

// Set stores a query result. A zero ttl uses the manager default.
func (qc *QueryCache) Set(ctx context.Context, query string, params []interface{}, result interface{}, ttl time.Duration) error {
	normalized := normalizeQuery(query)
	key, err := queryKey(normalized, params)
	if err != nil {
		return err
	}
	return qc.manager.Set(ctx, key, result, Options{TTL: ttl})
}

// Invalidate removes every cached query result from both tiers.
func (qc *QueryCache) Invalidate(ctx context.Context) int {
	return qc.manager.DeleteMatching(ctx, "query:*")
}

// SignatureStats returns a copy of the per-query-shape hit/miss counters.
func (qc *QueryCache) SignatureStats() map[string]SignatureStat {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	out := make(map[string]SignatureStat, len(qc.signatures))
	for sig, stat := range qc.signatures {
		out[sig] = *stat
	}
	return out
}

func (qc *QueryCache) record(normalized string, hit bool) {
	sig := normalized
	if len(sig) > signatureLength {
		sig = sig[:signatureLength]
	}

	qc.mu.Lock()
	stat, ok := qc.signatures[sig]
	if !ok {
		stat = &SignatureStat{}
		qc.signatures[sig] = stat
	}
	if hit {
		stat.Hits++
	} else {
		stat.Misses++
	}
	qc.mu.Unlock()
}

// normalizeQuery trims, lowercases and collapses whitespace so formatting
// differences do not fragment the cache. Semantically identical but
// textually different queries still cache separately.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func queryKey(normalized string, params []interface{}) (string, error) {
	serialized, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to serialize query params: %w", err)
	}

	qh := fnv.New32a()
	qh.Write([]byte(normalized))
	ph := fnv.New32a()
	ph.Write(serialized)

	return fmt.Sprintf("query:%08x:%08x", qh.Sum32(), ph.Sum32()), nil
}
