package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devmind-ai/devmind/internal/cache"
	deverrors "github.com/devmind-ai/devmind/internal/errors"
)

// failureThreshold is the consecutive-failure count that trips the façade
// into degraded mode.
const failureThreshold = 3

// DefaultCacheTTL bounds how long cached result sets are served.
const DefaultCacheTTL = 5 * time.Minute

// HealthChecker reports whether the vector backend can serve queries.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status is the façade's health snapshot.
type Status struct {
	Healthy             bool `json:"healthy"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
	CacheAvailable      bool `json:"cache_available"`
}

// Resilient wraps the retrieval pipeline with a cache-first, health-aware
// fallback chain: cache, vector-backed retrieval, keyword-only retrieval.
// After failureThreshold consecutive vector failures the vector path is
// skipped until an external health probe reports recovery; the façade never
// self-probes inline with a request.
type Resilient struct {
	pipeline  *Pipeline
	cache     cache.Cache
	health    HealthChecker
	workspace string
	cacheTTL  time.Duration

	mu                  sync.Mutex
	consecutiveFailures int
	healthy             bool
}

// NewResilient creates the façade. cache may be nil (every lookup misses).
// workspace namespaces cache keys.
func NewResilient(pipeline *Pipeline, c cache.Cache, health HealthChecker, workspace string, cacheTTL time.Duration) *Resilient {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Resilient{
		pipeline:  pipeline,
		cache:     c,
		health:    health,
		workspace: workspace,
		cacheTTL:  cacheTTL,
		healthy:   true,
	}
}

// Search serves one query through the fallback chain. Cache errors are
// logged and treated as misses, never propagated.
func (r *Resilient) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	key := r.cacheKey(query, opts.TopK)

	if results, ok := r.cacheGet(ctx, key); ok {
		return results, nil
	}

	if r.isHealthy() {
		results, err := r.pipeline.Search(ctx, query, opts)
		if err == nil {
			r.recordSuccess()
			r.cacheSet(ctx, key, results)
			return results, nil
		}
		// Invalid input never reached the vector backend: reject it
		// without touching the failure counter or the fallback path.
		if deverrors.GetCategory(err) == deverrors.CategoryValidation {
			return nil, err
		}
		r.recordFailure(err)
	}

	return r.searchDegraded(ctx, query, opts)
}

// searchDegraded runs keyword-only retrieval and tags every result so
// callers can surface a warning.
func (r *Resilient) searchDegraded(ctx context.Context, query string, opts Options) ([]*Result, error) {
	results, err := r.pipeline.SearchKeywordOnly(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		res.Degraded = true
		res.SearchMode = ModeKeywordFallback
	}
	return results, nil
}

// CheckHealth probes the vector backend. Called on an external schedule by
// the Prober; on a healthy report while degraded, the failure counter resets
// and the vector path re-enables.
func (r *Resilient) CheckHealth(ctx context.Context) bool {
	if r.health == nil {
		return false
	}
	err := r.health.HealthCheck(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if r.healthy {
			slog.Warn("health_probe_failed", slog.String("error", err.Error()))
		}
		return false
	}
	if !r.healthy {
		slog.Info("vector_backend_recovered",
			slog.Int("failures_cleared", r.consecutiveFailures))
		r.healthy = true
		r.consecutiveFailures = 0
	}
	return true
}

// Status reports the façade's current health.
func (r *Resilient) Status() Status {
	r.mu.Lock()
	healthy := r.healthy
	failures := r.consecutiveFailures
	r.mu.Unlock()

	cacheAvailable := false
	if r.cache != nil {
		cacheAvailable = r.cache.Ping(context.Background()) == nil
	}

	return Status{
		Healthy:             healthy,
		ConsecutiveFailures: failures,
		CacheAvailable:      cacheAvailable,
	}
}

func (r *Resilient) isHealthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthy
}

func (r *Resilient) recordSuccess() {
	r.mu.Lock()
	r.consecutiveFailures = 0
	r.mu.Unlock()
}

func (r *Resilient) recordFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consecutiveFailures++
	slog.Warn("vector_search_failed",
		slog.Int("consecutive_failures", r.consecutiveFailures),
		slog.String("error", err.Error()))

	if r.healthy && r.consecutiveFailures >= failureThreshold {
		r.healthy = false
		slog.Warn("vector_backend_degraded",
			slog.Int("threshold", failureThreshold))
	}
}

func (r *Resilient) cacheKey(query string, topK int) string {
	return fmt.Sprintf("search:%s:%s:%d", r.workspace, query, topK)
}

func (r *Resilient) cacheGet(ctx context.Context, key string) ([]*Result, bool) {
	if r.cache == nil {
		return nil, false
	}
	value, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("cache_read_failed", slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	results, ok := value.([]*Result)
	if !ok {
		return nil, false
	}
	return results, true
}

func (r *Resilient) cacheSet(ctx context.Context, key string, results []*Result) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, results, r.cacheTTL); err != nil {
		slog.Warn("cache_write_failed", slog.String("error", err.Error()))
	}
}
