// Package llm provides generation providers and the admission-controlled
// client that governs outbound model calls.
package llm

import (
	"context"
)

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// DefaultGenerateOptions returns conservative generation settings.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

// StreamDelta is one increment of a streamed generation. The channel closes
// after the final delta; Err is set on the last delta when the stream failed
// mid-generation.
type StreamDelta struct {
	Text string
	Done bool
	Err  error
}

// Provider is a single generation backend. Implementations are constructed
// at startup; construction failures discard the provider rather than
// deferring the error to call time.
type Provider interface {
	// Generate produces a complete response for the prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Stream produces a finite, non-restartable sequence of text deltas.
	// Cancelling ctx stops the stream; the channel always closes.
	Stream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamDelta, error)

	// Name identifies the provider for logs and status.
	Name() string

	// Available reports whether the backend is reachable right now.
	Available(ctx context.Context) bool
}
