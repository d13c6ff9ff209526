package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	stopWords := BuildStopWordMap(DefaultStopWords)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain words lowercased",
			input: "Database Connection Pool",
			want:  []string{"database", "connection", "pool"},
		},
		{
			name:  "stopwords and single chars dropped",
			input: "the cache of a b server",
			want:  []string{"cache", "server"},
		},
		{
			name:  "camelCase identifier split",
			input: "handleUserRequest",
			want:  []string{"handle", "user", "request"},
		},
		{
			name:  "snake_case identifier split",
			input: "user_request_handler",
			want:  []string{"user", "request", "handler"},
		},
		{
			name:  "punctuation separates tokens",
			input: "func add(x, y int) int",
			want:  []string{"func", "add", "int", "int"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input, stopWords))
		})
	}
}

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"simple", []string{"simple"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitCamelCase(tt.input), "input: %q", tt.input)
	}
}
