package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/devmind-ai/devmind/internal/cache"
	"github.com/devmind-ai/devmind/internal/config"
	"github.com/devmind-ai/devmind/internal/embed"
	"github.com/devmind-ai/devmind/internal/keyword"
	"github.com/devmind-ai/devmind/internal/llm"
	"github.com/devmind-ai/devmind/internal/logging"
	"github.com/devmind-ai/devmind/internal/search"
	"github.com/devmind-ai/devmind/internal/store"
	"github.com/devmind-ai/devmind/internal/telemetry"
)

// engine wires the retrieval core together for one CLI invocation:
// embedder, vector store, keyword index, pipeline, façade, prober.
type engine struct {
	cfg      *config.Config
	embedder embed.Embedder
	vectors  *store.HNSWStore
	facade   *search.Resilient
	pipeline *search.Pipeline
	prober   *search.Prober
	metrics  *telemetry.QueryMetrics
	limiter  *llm.RateLimitedClient
	cleanup  []func()
}

// buildEngine loads config, indexes the corpus, and starts the background
// prober. The caller must call close() when done.
func buildEngine(ctx context.Context, configPath, corpusPath string) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.FilePath
	if logCleanup, err := logging.SetupDefault(logCfg); err == nil {
		e.cleanup = append(e.cleanup, logCleanup)
	}

	e.embedder = buildEmbedder(ctx, cfg)
	e.cleanup = append(e.cleanup, func() { _ = e.embedder.Close() })

	chunks, err := loadCorpus(corpusPath)
	if err != nil {
		e.close()
		return nil, err
	}
	slog.Info("corpus_loaded", slog.String("path", corpusPath), slog.Int("chunks", len(chunks)))

	e.vectors, err = store.NewHNSWStore(store.DefaultHNSWConfig(e.embedder.Dimensions()))
	if err != nil {
		e.close()
		return nil, err
	}
	e.cleanup = append(e.cleanup, func() { _ = e.vectors.Close() })

	if err := indexChunks(ctx, e.embedder, e.vectors, chunks); err != nil {
		e.close()
		return nil, fmt.Errorf("failed to index corpus: %w", err)
	}

	kwIndex := keyword.New(keyword.Config{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B})
	kwIndex.Build(chunks)

	e.metrics = telemetry.New()

	vecSearcher := search.NewVectorSearcher(e.vectors, cfg.Search.IndexWeights)
	e.pipeline = search.NewPipeline(vecSearcher, kwIndex, e.embedder, e.metrics, search.Config{
		VectorWeight:  cfg.Search.VectorWeight,
		KeywordWeight: cfg.Search.KeywordWeight,
		MinScore:      cfg.Search.MinScore,
		IndexWeights:  cfg.Search.IndexWeights,
	})

	resultCache, err := cache.NewLRU(cfg.Cache.Size)
	if err != nil {
		e.close()
		return nil, err
	}

	e.facade = search.NewResilient(e.pipeline, resultCache, vecSearcher, cfg.Workspace, cfg.Cache.TTL)

	e.prober = search.NewProber(e.facade, cfg.Search.ProbeInterval)
	e.prober.Start(ctx)
	e.cleanup = append(e.cleanup, e.prober.Stop)

	return e, nil
}

// buildLimiter constructs the rate-limited generation client: Ollama primary
// when reachable, static fallback always.
func (e *engine) buildLimiter(ctx context.Context) *llm.RateLimitedClient {
	if e.limiter != nil {
		return e.limiter
	}

	genCfg := llm.DefaultOllamaProviderConfig()
	genCfg.Host = e.cfg.Generate.OllamaHost
	genCfg.Model = e.cfg.Generate.Model
	genCfg.Timeout = e.cfg.Generate.Timeout

	var primary llm.Provider
	ollama := llm.NewOllamaProvider(genCfg)
	if ollama.Available(ctx) {
		primary = ollama
		e.cleanup = append(e.cleanup, func() { _ = ollama.Close() })
	} else {
		slog.Warn("ollama_unavailable_using_static_provider", slog.String("host", genCfg.Host))
		_ = ollama.Close()
		primary = llm.NewStaticProvider()
	}

	e.limiter = llm.NewRateLimitedClient(primary, llm.NewStaticProvider(), llm.RateLimitConfig{
		MaxRPM:       e.cfg.RateLimit.MaxRPM,
		Window:       e.cfg.RateLimit.Window,
		QueueSize:    e.cfg.RateLimit.QueueSize,
		QueueTimeout: e.cfg.RateLimit.QueueTimeout,
	})
	e.cleanup = append(e.cleanup, e.limiter.Stop)
	return e.limiter
}

func (e *engine) close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// buildEmbedder attempts the configured provider and falls back to the
// deterministic static embedder when construction fails.
func buildEmbedder(ctx context.Context, cfg *config.Config) embed.Embedder {
	var inner embed.Embedder

	if strings.EqualFold(cfg.Embed.Provider, "ollama") {
		ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
			Host:       cfg.Embed.OllamaHost,
			Model:      cfg.Embed.Model,
			Dimensions: cfg.Embed.Dimensions,
			BatchSize:  cfg.Embed.BatchSize,
		})
		if err != nil {
			slog.Warn("ollama_embedder_unavailable_using_static", slog.String("error", err.Error()))
		} else {
			inner = ollama
		}
	}
	if inner == nil {
		inner = embed.NewStaticEmbedder()
	}

	return embed.NewCachedEmbedder(inner, cfg.Embed.CacheSize)
}

// loadCorpus reads chunks from a JSONL file, one chunk per line. Blank lines
// are skipped.
func loadCorpus(path string) ([]*store.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	var chunks []*store.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk store.Chunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", lineNo, err)
		}
		if chunk.IndexName == "" {
			chunk.IndexName = store.IndexCode
		}
		chunks = append(chunks, &chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return chunks, nil
}

// indexChunks embeds chunk contents and loads them into the vector store,
// grouped by index name.
func indexChunks(ctx context.Context, embedder embed.Embedder, vectors *store.HNSWStore, chunks []*store.Chunk) error {
	byIndex := make(map[string][]*store.Chunk)
	for _, chunk := range chunks {
		byIndex[chunk.IndexName] = append(byIndex[chunk.IndexName], chunk)
	}

	for indexName, indexChunks := range byIndex {
		texts := make([]string, len(indexChunks))
		for i, chunk := range indexChunks {
			texts[i] = chunk.Content
		}

		embeddings, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if err := vectors.Add(ctx, indexName, embeddings, indexChunks); err != nil {
			return err
		}
	}
	return nil
}
