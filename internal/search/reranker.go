package search

import (
	"sort"

	"github.com/devmind-ai/devmind/internal/store"
)

// WeightedReranker merges vector and keyword candidate sets into one ranked
// list using a weighted linear combination of their scores. The two input
// score spaces are not comparable until combined.
type WeightedReranker struct {
	vectorWeight  float64
	keywordWeight float64
}

// NewWeightedReranker creates a reranker with the given weights, normalized
// so they sum to 1. Non-positive totals fall back to the defaults.
func NewWeightedReranker(vectorWeight, keywordWeight float64) *WeightedReranker {
	total := vectorWeight + keywordWeight
	if total <= 0 {
		vectorWeight = DefaultVectorWeight
		keywordWeight = DefaultKeywordWeight
		total = vectorWeight + keywordWeight
	}
	return &WeightedReranker{
		vectorWeight:  vectorWeight / total,
		keywordWeight: keywordWeight / total,
	}
}

// Weights returns the normalized (vector, keyword) weights.
func (r *WeightedReranker) Weights() (float64, float64) {
	return r.vectorWeight, r.keywordWeight
}

// Rerank unions both candidate sets by chunk ID. A chunk present in only one
// set scores 0 for the missing side. Ties keep insertion order: vector
// candidates first, then keyword-only candidates.
func (r *WeightedReranker) Rerank(vec []*store.VectorResult, kw []*store.KeywordResult) []*Result {
	if len(kw) == 0 {
		return r.RerankVectorOnly(vec)
	}

	kwByID := make(map[string]*store.KeywordResult, len(kw))
	for _, k := range kw {
		if k.Chunk != nil {
			kwByID[k.Chunk.ID] = k
		}
	}

	results := make([]*Result, 0, len(vec)+len(kw))
	seen := make(map[string]struct{}, len(vec))

	for _, v := range vec {
		if v.Chunk == nil {
			continue
		}
		res := resultFromChunk(v.Chunk)
		res.IndexName = v.IndexName
		res.VectorScore = v.Score
		res.SearchMode = ModeHybrid
		if k, ok := kwByID[v.Chunk.ID]; ok {
			res.KeywordScore = k.Score
			res.MatchedTerms = k.MatchedTerms
		}
		res.Score = r.vectorWeight*res.VectorScore + r.keywordWeight*res.KeywordScore
		results = append(results, res)
		seen[v.Chunk.ID] = struct{}{}
	}

	for _, k := range kw {
		if k.Chunk == nil {
			continue
		}
		if _, ok := seen[k.Chunk.ID]; ok {
			continue
		}
		res := resultFromChunk(k.Chunk)
		res.KeywordScore = k.Score
		res.MatchedTerms = k.MatchedTerms
		res.SearchMode = ModeHybrid
		res.Score = r.keywordWeight * k.Score
		results = append(results, res)
	}

	sortByScore(results)
	return results
}

// RerankVectorOnly converts vector candidates directly, used when keyword
// search is disabled or unavailable.
func (r *WeightedReranker) RerankVectorOnly(vec []*store.VectorResult) []*Result {
	results := make([]*Result, 0, len(vec))
	for _, v := range vec {
		if v.Chunk == nil {
			continue
		}
		res := resultFromChunk(v.Chunk)
		res.IndexName = v.IndexName
		res.VectorScore = v.Score
		res.Score = r.vectorWeight * v.Score
		res.SearchMode = ModeVector
		results = append(results, res)
	}
	sortByScore(results)
	return results
}

// BoostByType multiplies each result's score by a per-section-type factor
// and re-sorts. Section types absent from the map are unchanged.
func BoostByType(results []*Result, multipliers map[store.SectionType]float64) []*Result {
	if len(multipliers) == 0 {
		return results
	}
	for _, res := range results {
		if m, ok := multipliers[res.SectionType]; ok {
			res.Score *= m
		}
	}
	sortByScore(results)
	return results
}

func resultFromChunk(c *store.Chunk) *Result {
	return &Result{
		ChunkID:     c.ID,
		Content:     c.Content,
		FilePath:    c.FilePath,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		SectionType: c.SectionType,
		Language:    c.Language,
		IndexName:   c.IndexName,
	}
}

// sortByScore sorts descending; stable so ties keep insertion order.
func sortByScore(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
