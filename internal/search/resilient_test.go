package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmind-ai/devmind/internal/cache"
	"github.com/devmind-ai/devmind/internal/embed"
	deverrors "github.com/devmind-ai/devmind/internal/errors"
	"github.com/devmind-ai/devmind/internal/keyword"
	"github.com/devmind-ai/devmind/internal/store"
	"github.com/devmind-ai/devmind/internal/telemetry"
)

// flakyStore delegates to a real in-memory store but can be switched into a
// failing state to simulate a vector backend outage.
type flakyStore struct {
	inner       *store.HNSWStore
	failing     atomic.Bool
	searchCalls atomic.Int32
}

var errBackendDown = errors.New("backend down")

func (f *flakyStore) Add(ctx context.Context, indexName string, vectors [][]float32, chunks []*store.Chunk) error {
	return f.inner.Add(ctx, indexName, vectors, chunks)
}

func (f *flakyStore) Search(ctx context.Context, indexName string, query []float32, k int) ([]*store.VectorResult, error) {
	f.searchCalls.Add(1)
	if f.failing.Load() {
		return nil, errBackendDown
	}
	return f.inner.Search(ctx, indexName, query, k)
}

func (f *flakyStore) SearchAll(ctx context.Context, query []float32, k int, weights map[string]float64) ([]*store.VectorResult, error) {
	f.searchCalls.Add(1)
	if f.failing.Load() {
		return nil, errBackendDown
	}
	return f.inner.SearchAll(ctx, query, k, weights)
}

func (f *flakyStore) HealthCheck(ctx context.Context) error {
	if f.failing.Load() {
		return errBackendDown
	}
	return f.inner.HealthCheck(ctx)
}

func (f *flakyStore) Count() int { return f.inner.Count() }

func (f *flakyStore) Close() error { return f.inner.Close() }

var _ store.VectorStore = (*flakyStore)(nil)

// buildResilient wires a façade over a flaky backend with one indexed chunk.
func buildResilient(t *testing.T, c cache.Cache) (*Resilient, *flakyStore) {
	t.Helper()
	ctx := context.Background()

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	inner, err := store.NewHNSWStore(store.DefaultHNSWConfig(embedder.Dimensions()))
	require.NoError(t, err)
	flaky := &flakyStore{inner: inner}
	t.Cleanup(func() { _ = flaky.Close() })

	chunk := codeChunk("add", "def add(a,b): return a+b", store.SectionTypeFunction)
	vec, err := embedder.Embed(ctx, chunk.Content)
	require.NoError(t, err)
	require.NoError(t, flaky.Add(ctx, store.IndexCode, [][]float32{vec}, []*store.Chunk{chunk}))

	kw := keyword.New(keyword.DefaultConfig())
	kw.Build([]*store.Chunk{chunk})

	pipeline := NewPipeline(
		NewVectorSearcher(flaky, nil), kw, embedder,
		telemetry.New(), DefaultPipelineConfig(),
	)
	return NewResilient(pipeline, c, flaky, "testws", time.Minute), flaky
}

func TestResilient_HealthySearch(t *testing.T) {
	facade, _ := buildResilient(t, nil)

	results, err := facade.Search(context.Background(), "add numbers", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.False(t, results[0].Degraded)
	assert.Equal(t, ModeHybrid, results[0].SearchMode)
	assert.True(t, facade.Status().Healthy)
}

func TestResilient_DegradesAfterConsecutiveFailures(t *testing.T) {
	facade, flaky := buildResilient(t, nil)
	flaky.failing.Store(true)
	ctx := context.Background()

	// Every failed vector attempt still answers via keyword fallback.
	for i := 0; i < failureThreshold; i++ {
		results, err := facade.Search(ctx, "add numbers", DefaultOptions())
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.True(t, results[0].Degraded)
		assert.Equal(t, ModeKeywordFallback, results[0].SearchMode)
	}

	status := facade.Status()
	assert.False(t, status.Healthy)
	assert.Equal(t, failureThreshold, status.ConsecutiveFailures)

	// Once degraded the vector backend is no longer consulted.
	before := flaky.searchCalls.Load()
	_, err := facade.Search(ctx, "add numbers", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, before, flaky.searchCalls.Load())
}

func TestResilient_ValidationErrorsDoNotTripBreaker(t *testing.T) {
	facade, flaky := buildResilient(t, nil)
	ctx := context.Background()

	// Invalid requests are rejected before the vector backend is touched,
	// so they must not count as backend failures.
	for i := 0; i < failureThreshold; i++ {
		_, err := facade.Search(ctx, "   ", DefaultOptions())
		require.Error(t, err)
		assert.Equal(t, deverrors.CategoryValidation, deverrors.GetCategory(err))
	}

	badOpts := DefaultOptions()
	badOpts.Criteria = &Criteria{MinLine: 10, MaxLine: 5}
	_, err := facade.Search(ctx, "add numbers", badOpts)
	require.Error(t, err)
	assert.Equal(t, deverrors.CategoryValidation, deverrors.GetCategory(err))

	status := facade.Status()
	assert.True(t, status.Healthy)
	assert.Zero(t, status.ConsecutiveFailures)

	// A valid query still takes the healthy vector path.
	results, err := facade.Search(ctx, "add numbers", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.False(t, results[0].Degraded)
	assert.Equal(t, ModeHybrid, results[0].SearchMode)

	// The rejected requests never consulted the backend: only the valid
	// query's vector search shows up.
	assert.Equal(t, int32(1), flaky.searchCalls.Load())
}

func TestResilient_RequestsNeverProbeInline(t *testing.T) {
	facade, flaky := buildResilient(t, nil)
	flaky.failing.Store(true)
	ctx := context.Background()

	for i := 0; i < failureThreshold; i++ {
		_, _ = facade.Search(ctx, "add numbers", DefaultOptions())
	}
	require.False(t, facade.Status().Healthy)

	// Backend recovers, but without an external probe the façade stays
	// degraded.
	flaky.failing.Store(false)
	results, err := facade.Search(ctx, "add numbers", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.True(t, results[0].Degraded)
	assert.False(t, facade.Status().Healthy)
}

func TestResilient_RecoversViaHealthProbe(t *testing.T) {
	facade, flaky := buildResilient(t, nil)
	flaky.failing.Store(true)
	ctx := context.Background()

	for i := 0; i < failureThreshold; i++ {
		_, _ = facade.Search(ctx, "add numbers", DefaultOptions())
	}
	require.False(t, facade.Status().Healthy)

	assert.False(t, facade.CheckHealth(ctx))

	flaky.failing.Store(false)
	assert.True(t, facade.CheckHealth(ctx))

	status := facade.Status()
	assert.True(t, status.Healthy)
	assert.Zero(t, status.ConsecutiveFailures)

	results, err := facade.Search(ctx, "add numbers", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.False(t, results[0].Degraded)
}

func TestResilient_SuccessResetsFailureCounter(t *testing.T) {
	facade, flaky := buildResilient(t, nil)
	ctx := context.Background()

	flaky.failing.Store(true)
	_, _ = facade.Search(ctx, "add numbers", DefaultOptions())
	_, _ = facade.Search(ctx, "add numbers", DefaultOptions())
	assert.Equal(t, 2, facade.Status().ConsecutiveFailures)

	flaky.failing.Store(false)
	_, err := facade.Search(ctx, "add numbers", DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, facade.Status().ConsecutiveFailures)
	assert.True(t, facade.Status().Healthy)
}

func TestResilient_CacheServesRepeatQueries(t *testing.T) {
	c, err := cache.NewLRU(16)
	require.NoError(t, err)
	facade, flaky := buildResilient(t, c)
	ctx := context.Background()

	first, err := facade.Search(ctx, "add numbers", DefaultOptions())
	require.NoError(t, err)
	calls := flaky.searchCalls.Load()

	second, err := facade.Search(ctx, "add numbers", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, calls, flaky.searchCalls.Load())
	assert.Equal(t, first, second)

	// A different topK misses the cache.
	opts := DefaultOptions()
	opts.TopK = 3
	_, err = facade.Search(ctx, "add numbers", opts)
	require.NoError(t, err)
	assert.Greater(t, flaky.searchCalls.Load(), calls)
}

// brokenCache fails every operation.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(ctx context.Context, key string) (any, bool, error) {
	return nil, false, errCacheDown
}

func (brokenCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return errCacheDown
}

func (brokenCache) Ping(ctx context.Context) error { return errCacheDown }

func TestResilient_CacheFailuresAreNotFatal(t *testing.T) {
	facade, _ := buildResilient(t, brokenCache{})

	results, err := facade.Search(context.Background(), "add numbers", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.False(t, results[0].Degraded)

	status := facade.Status()
	assert.True(t, status.Healthy)
	assert.False(t, status.CacheAvailable)
}

func TestResilient_StatusReportsCacheAvailability(t *testing.T) {
	c, err := cache.NewLRU(16)
	require.NoError(t, err)
	facade, _ := buildResilient(t, c)
	assert.True(t, facade.Status().CacheAvailable)

	noCache, _ := buildResilient(t, nil)
	assert.False(t, noCache.Status().CacheAvailable)
}

func TestResilient_CheckHealthWithoutChecker(t *testing.T) {
	facade := NewResilient(nil, nil, nil, "ws", 0)
	assert.False(t, facade.CheckHealth(context.Background()))
}
