package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devmind-ai/devmind/internal/embed"
	deverrors "github.com/devmind-ai/devmind/internal/errors"
	"github.com/devmind-ai/devmind/internal/keyword"
	"github.com/devmind-ai/devmind/internal/store"
	"github.com/devmind-ai/devmind/internal/telemetry"
)

// Pipeline orchestrates one search: embed the query once, fan out to the
// vector and keyword paths concurrently, rerank, filter, deduplicate,
// truncate. Candidate fetches over-sample so filtering does not starve
// the final result set.
type Pipeline struct {
	vector   *VectorSearcher
	keyword  *keyword.Index
	embedder embed.Embedder
	reranker *WeightedReranker
	metrics  *telemetry.QueryMetrics
	config   Config
}

// NewPipeline creates a retrieval pipeline. metrics may be nil to disable
// telemetry recording.
func NewPipeline(vector *VectorSearcher, kw *keyword.Index, embedder embed.Embedder, metrics *telemetry.QueryMetrics, cfg Config) *Pipeline {
	if cfg.VectorWeight <= 0 && cfg.KeywordWeight <= 0 {
		cfg = DefaultPipelineConfig()
	}
	return &Pipeline{
		vector:   vector,
		keyword:  kw,
		embedder: embedder,
		reranker: NewWeightedReranker(cfg.VectorWeight, cfg.KeywordWeight),
		metrics:  metrics,
		config:   cfg,
	}
}

// BuildKeywordIndex bulk-loads the BM25 index from the given chunks.
func (p *Pipeline) BuildKeywordIndex(chunks []*store.Chunk) {
	p.keyword.Build(chunks)
}

// Search runs the full retrieval pipeline for one query.
func (p *Pipeline) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	return p.search(ctx, query, opts, 2)
}

// SearchFile searches within a single file. Over-samples more aggressively
// since the path predicate discards most candidates.
func (p *Pipeline) SearchFile(ctx context.Context, query, filePath string, topK int) ([]*Result, error) {
	opts := DefaultOptions()
	opts.TopK = topK
	opts.Criteria = &Criteria{PathPrefix: filePath}
	return p.search(ctx, query, opts, 3)
}

// SearchLanguage searches chunks in a single language.
func (p *Pipeline) SearchLanguage(ctx context.Context, query, language string, topK int) ([]*Result, error) {
	opts := DefaultOptions()
	opts.TopK = topK
	opts.Criteria = &Criteria{Languages: []string{language}}
	return p.search(ctx, query, opts, 2)
}

// SearchFunctions restricts results to function and method chunks.
func (p *Pipeline) SearchFunctions(ctx context.Context, query string, topK int) ([]*Result, error) {
	opts := DefaultOptions()
	opts.TopK = topK
	opts.Criteria = &Criteria{SectionTypes: []store.SectionType{store.SectionTypeFunction, store.SectionTypeMethod}}
	return p.search(ctx, query, opts, 2)
}

// SearchClasses restricts results to class and interface chunks.
func (p *Pipeline) SearchClasses(ctx context.Context, query string, topK int) ([]*Result, error) {
	opts := DefaultOptions()
	opts.TopK = topK
	opts.Criteria = &Criteria{SectionTypes: []store.SectionType{store.SectionTypeClass, store.SectionTypeInterface}}
	return p.search(ctx, query, opts, 2)
}

func (p *Pipeline) search(ctx context.Context, query string, opts Options, fetchMultiplier int) ([]*Result, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, deverrors.New(deverrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if err := opts.Criteria.Validate(); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	fetchK := opts.TopK * fetchMultiplier

	queryVec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, deverrors.New(deverrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}

	useKeyword := opts.UseKeyword && p.keyword != nil && p.keyword.Built()

	var (
		vecResults []*store.VectorResult
		kwResults  []*store.KeywordResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var verr error
		if opts.IndexName != "" {
			vecResults, verr = p.vector.Search(gctx, queryVec, opts.IndexName, fetchK)
		} else {
			vecResults, verr = p.vector.SearchMulti(gctx, queryVec, fetchK)
		}
		return verr
	})
	if useKeyword {
		g.Go(func() error {
			kwResults = p.keyword.Search(query, fetchK)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, deverrors.New(deverrors.ErrCodeSearchFailed, "vector search failed", err)
	}

	var results []*Result
	mode := ModeVector
	if useKeyword {
		results = p.reranker.Rerank(vecResults, kwResults)
		mode = ModeHybrid
	} else {
		results = p.reranker.RerankVectorOnly(vecResults)
	}

	if len(p.config.TypeBoosts) > 0 {
		results = BoostByType(results, p.config.TypeBoosts)
	}

	results = p.finalize(results, opts)

	p.record(query, telemetry.SearchMode(mode), len(results), false, time.Since(start))
	slog.Debug("search_complete",
		slog.String("mode", mode),
		slog.Int("vector_candidates", len(vecResults)),
		slog.Int("keyword_candidates", len(kwResults)),
		slog.Int("results", len(results)),
		slog.Duration("latency", time.Since(start)))

	return results, nil
}

// SearchKeywordOnly serves the degraded path: BM25 only, no embedding, no
// vector backend. Results carry the keyword score directly.
func (p *Pipeline) SearchKeywordOnly(ctx context.Context, query string, opts Options) ([]*Result, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, deverrors.New(deverrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if err := opts.Criteria.Validate(); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	var results []*Result
	if p.keyword != nil && p.keyword.Built() {
		for _, k := range p.keyword.Search(query, opts.TopK*2) {
			if k.Chunk == nil {
				continue
			}
			res := resultFromChunk(k.Chunk)
			res.KeywordScore = k.Score
			res.MatchedTerms = k.MatchedTerms
			res.Score = k.Score
			res.SearchMode = ModeKeywordFallback
			results = append(results, res)
		}
	}

	results = p.finalize(results, opts)

	p.record(query, telemetry.ModeKeywordFallback, len(results), true, time.Since(start))
	return results, nil
}

// finalize applies criteria, the configured score floor, deduplication and
// the topK truncation.
func (p *Pipeline) finalize(results []*Result, opts Options) []*Result {
	results = Apply(results, opts.Criteria)
	if p.config.MinScore > 0 {
		results = Apply(results, &Criteria{MinScore: p.config.MinScore})
	}
	results = Deduplicate(results, false)
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}

func (p *Pipeline) record(query string, mode telemetry.SearchMode, count int, degraded bool, latency time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Mode:        mode,
		ResultCount: count,
		Degraded:    degraded,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

// Metrics returns the telemetry collector, nil if disabled.
func (p *Pipeline) Metrics() *telemetry.QueryMetrics {
	return p.metrics
}
