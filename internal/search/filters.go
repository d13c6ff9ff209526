package search

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	deverrors "github.com/devmind-ai/devmind/internal/errors"
	"github.com/devmind-ai/devmind/internal/store"
)

// Criteria is a conjunctive predicate set applied to reranked results.
// Created per request, never persisted. Zero values mean "no constraint".
type Criteria struct {
	// FileTypes allows only these file extensions (with or without the dot).
	FileTypes []string

	// Languages allows only these languages (case-insensitive).
	Languages []string

	// PathPrefix requires the file path to start with this prefix.
	PathPrefix string

	// PathExcludes drops results whose path contains any of these patterns.
	PathExcludes []string

	// MinScore drops results below this combined score, after any type
	// boosts have been applied.
	MinScore float64

	// MinLine/MaxLine keep results whose line range overlaps [MinLine, MaxLine].
	// Both zero means no line constraint.
	MinLine int
	MaxLine int

	// SectionTypes allows only these section kinds.
	SectionTypes []store.SectionType

	// MaxResults caps the result count after all predicates. Zero means
	// no cap.
	MaxResults int
}

// Validate rejects criteria that cannot be satisfied.
func (c *Criteria) Validate() error {
	if c == nil {
		return nil
	}
	// No upper bound on the score floor: type boosts can push combined
	// scores above 1.0, and the floor applies to the boosted score.
	if c.MinScore < 0 {
		return deverrors.New(deverrors.ErrCodeInvalidCriteria, "min score must be non-negative", nil)
	}
	if c.MinLine < 0 || c.MaxLine < 0 {
		return deverrors.New(deverrors.ErrCodeInvalidCriteria, "line bounds must be non-negative", nil)
	}
	if c.MaxLine > 0 && c.MinLine > c.MaxLine {
		return deverrors.New(deverrors.ErrCodeInvalidCriteria, "min line exceeds max line", nil)
	}
	if c.MaxResults < 0 {
		return deverrors.New(deverrors.ErrCodeInvalidCriteria, "max results must be non-negative", nil)
	}
	return nil
}

// Apply filters results against the criteria. Predicate order: score floor,
// file type, language, path prefix, path excludes, line overlap, section
// type, then the result cap. The score floor runs before capping so
// truncation reflects final relevance.
func Apply(results []*Result, c *Criteria) []*Result {
	if c == nil {
		return results
	}

	filtered := make([]*Result, 0, len(results))
	for _, res := range results {
		if res.Score < c.MinScore {
			continue
		}
		if !matchesFileType(res.FilePath, c.FileTypes) {
			continue
		}
		if !matchesLanguage(res.Language, c.Languages) {
			continue
		}
		if c.PathPrefix != "" && !strings.HasPrefix(res.FilePath, c.PathPrefix) {
			continue
		}
		if matchesAnyPattern(res.FilePath, c.PathExcludes) {
			continue
		}
		if !overlapsLineRange(res, c.MinLine, c.MaxLine) {
			continue
		}
		if !matchesSectionType(res.SectionType, c.SectionTypes) {
			continue
		}
		filtered = append(filtered, res)
	}

	if c.MaxResults > 0 && len(filtered) > c.MaxResults {
		filtered = filtered[:c.MaxResults]
	}
	return filtered
}

// Deduplicate removes repeated results, keeping the first (highest-ranked)
// occurrence. byContent collapses by SHA-256 content hash instead of chunk
// ID, used for overlapping chunks from the same file.
func Deduplicate(results []*Result, byContent bool) []*Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]*Result, 0, len(results))
	for _, res := range results {
		key := res.ChunkID
		if byContent {
			sum := sha256.Sum256([]byte(res.Content))
			key = hex.EncodeToString(sum[:])
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, res)
	}
	return out
}

func matchesFileType(path string, fileTypes []string) bool {
	if len(fileTypes) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, ft := range fileTypes {
		if strings.ToLower(strings.TrimPrefix(ft, ".")) == ext {
			return true
		}
	}
	return false
}

func matchesLanguage(language string, languages []string) bool {
	if len(languages) == 0 {
		return true
	}
	for _, l := range languages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}

func matchesAnyPattern(path string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// overlapsLineRange tests start <= maxLine AND end >= minLine.
func overlapsLineRange(res *Result, minLine, maxLine int) bool {
	if minLine == 0 && maxLine == 0 {
		return true
	}
	if maxLine > 0 && res.StartLine > maxLine {
		return false
	}
	return res.EndLine >= minLine
}

func matchesSectionType(st store.SectionType, allowed []store.SectionType) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == st {
			return true
		}
	}
	return false
}
