// Package keyword provides in-memory BM25 keyword search over chunks.
//
// The index is built in one shot and swapped in atomically: readers never
// observe a partially built generation and searches take no locks.
package keyword

import (
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"github.com/devmind-ai/devmind/internal/store"
)

// BM25 tuning parameters.
const (
	// DefaultK1 is the term frequency saturation parameter.
	DefaultK1 = 1.5

	// DefaultB is the document length normalization parameter.
	DefaultB = 0.75
)

// Config configures the BM25 index.
type Config struct {
	K1        float64
	B         float64
	StopWords []string
}

// DefaultConfig returns the default BM25 configuration.
func DefaultConfig() Config {
	return Config{
		K1:        DefaultK1,
		B:         DefaultB,
		StopWords: store.DefaultStopWords,
	}
}

// Index is a BM25 keyword index. The zero value is not usable; create with
// New. Search before the first Build returns no results.
type Index struct {
	config    Config
	stopWords map[string]struct{}
	segment   atomic.Pointer[segment]
}

// segment is one immutable index generation.
type segment struct {
	chunks    map[string]*store.Chunk     // chunk ID -> chunk
	postings  map[string]map[string]int   // term -> chunk ID -> frequency
	docLength map[string]int              // chunk ID -> token count
	avgLength float64
	numDocs   int
}

// New creates an empty BM25 index.
func New(cfg Config) *Index {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B <= 0 {
		cfg.B = DefaultB
	}
	if cfg.StopWords == nil {
		cfg.StopWords = store.DefaultStopWords
	}
	return &Index{
		config:    cfg,
		stopWords: store.BuildStopWordMap(cfg.StopWords),
	}
}

// Build indexes the given chunks, replacing any previous generation. The new
// generation becomes visible atomically once complete; concurrent searches
// keep reading the old one until then.
func (idx *Index) Build(chunks []*store.Chunk) {
	seg := &segment{
		chunks:    make(map[string]*store.Chunk, len(chunks)),
		postings:  make(map[string]map[string]int),
		docLength: make(map[string]int, len(chunks)),
	}

	totalLength := 0
	for _, chunk := range chunks {
		if _, dup := seg.chunks[chunk.ID]; dup {
			continue // each chunk indexed exactly once
		}
		seg.chunks[chunk.ID] = chunk

		tokens := store.Tokenize(chunk.Content, idx.stopWords)
		seg.docLength[chunk.ID] = len(tokens)
		totalLength += len(tokens)

		for _, token := range tokens {
			docs, ok := seg.postings[token]
			if !ok {
				docs = make(map[string]int)
				seg.postings[token] = docs
			}
			docs[chunk.ID]++
		}
		seg.numDocs++
	}

	if seg.numDocs > 0 {
		seg.avgLength = float64(totalLength) / float64(seg.numDocs)
	}

	idx.segment.Store(seg)

	slog.Debug("keyword_index_built",
		slog.Int("documents", seg.numDocs),
		slog.Int("terms", len(seg.postings)),
		slog.Float64("avg_doc_length", seg.avgLength))
}

// Built reports whether a generation has been indexed.
func (idx *Index) Built() bool {
	return idx.segment.Load() != nil
}

// Search returns up to topK chunks ranked by BM25, normalized so the top
// result scores 1.0. Queries with no recognized terms, or an empty index,
// return an empty slice rather than an error.
func (idx *Index) Search(query string, topK int) []*store.KeywordResult {
	seg := idx.segment.Load()
	if seg == nil || seg.numDocs == 0 || topK <= 0 {
		return []*store.KeywordResult{}
	}

	queryTokens := store.Tokenize(query, idx.stopWords)
	if len(queryTokens) == 0 {
		return []*store.KeywordResult{}
	}

	// Candidates: union of posting lists for every query term.
	candidates := make(map[string]struct{})
	for _, token := range queryTokens {
		for docID := range seg.postings[token] {
			candidates[docID] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return []*store.KeywordResult{}
	}

	type scored struct {
		docID   string
		score   float64
		matched []string
	}

	results := make([]scored, 0, len(candidates))
	for docID := range candidates {
		var score float64
		var matched []string

		docLen := float64(seg.docLength[docID])
		norm := 1.0 - idx.config.B + idx.config.B*(docLen/seg.avgLength)

		for _, token := range queryTokens {
			tf, ok := seg.postings[token][docID]
			if !ok {
				continue
			}
			df := float64(len(seg.postings[token]))
			idf := math.Log((float64(seg.numDocs)-df+0.5)/(df+0.5) + 1.0)

			score += idf * (float64(tf) * (idx.config.K1 + 1.0)) /
				(float64(tf) + idx.config.K1*norm)
			matched = append(matched, token)
		}

		if score > 0 {
			results = append(results, scored{docID: docID, score: score, matched: matched})
		}
	}
	if len(results) == 0 {
		return []*store.KeywordResult{}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].docID < results[j].docID
	})
	if len(results) > topK {
		results = results[:topK]
	}

	// Normalize against the top score so the best match is 1.0.
	maxScore := results[0].score
	out := make([]*store.KeywordResult, len(results))
	for i, r := range results {
		out[i] = &store.KeywordResult{
			Chunk:        seg.chunks[r.docID],
			Score:        r.score / maxScore,
			MatchedTerms: r.matched,
		}
	}
	return out
}

// Stats returns statistics for the active generation.
func (idx *Index) Stats() *store.IndexStats {
	seg := idx.segment.Load()
	if seg == nil {
		return &store.IndexStats{}
	}
	return &store.IndexStats{
		DocumentCount: seg.numDocs,
		TermCount:     len(seg.postings),
		AvgDocLength:  seg.avgLength,
	}
}
