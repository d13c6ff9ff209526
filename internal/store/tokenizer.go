package store

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRegex matches alphanumeric sequences (including underscores for the
// initial split).
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// DefaultStopWords are common English words stripped during tokenization.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "by", "from", "as", "is", "was", "are", "were", "be",
	"been", "being", "have", "has", "had", "do", "does", "did", "this",
	"that", "these", "those", "it", "its", "will", "would", "should",
}

// Tokenize splits text with code-aware rules: camelCase, PascalCase and
// snake_case identifiers are split into their parts, everything is
// lowercased, stop words and single-character tokens are dropped.
func Tokenize(text string, stopWords map[string]struct{}) []string {
	var tokens []string

	words := tokenRegex.FindAllString(text, -1)
	for _, word := range words {
		for _, t := range SplitCodeToken(word) {
			lower := strings.ToLower(t)
			if len(lower) < 2 {
				continue
			}
			if _, stop := stopWords[lower]; stop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}

	return tokens
}

// SplitCodeToken splits camelCase and snake_case identifiers.
func SplitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, SplitCamelCase(part)...)
			}
		}
		return result
	}
	return SplitCamelCase(token)
}

// SplitCamelCase splits camelCase and PascalCase identifiers.
// Examples:
//   - "getUserById" -> ["get", "User", "By", "Id"]
//   - "HTTPHandler" -> ["HTTP", "Handler"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// Split if previous is lowercase OR next is lowercase (handles acronyms)
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// BuildStopWordMap converts a slice of stop words to a set for O(1) lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
