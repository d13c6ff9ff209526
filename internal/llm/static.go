package llm

import (
	"context"
	"strings"
)

// StaticProvider is a local fallback used when no model backend is
// reachable. It returns the retrieved context instead of a synthesized
// answer so degraded responses still cite real passages.
type StaticProvider struct{}

// Verify interface implementation at compile time
var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates the fallback provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Name identifies the provider.
func (p *StaticProvider) Name() string {
	return "static"
}

// Generate extracts the context section of the prompt and returns it with a
// notice that no model was available.
func (p *StaticProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	const notice = "No language model is available. Here are the most relevant passages found:\n\n"

	start := strings.Index(prompt, "<context>")
	end := strings.Index(prompt, "</context>")
	if start >= 0 && end > start {
		context := strings.TrimSpace(prompt[start+len("<context>") : end])
		if context != "" {
			return notice + context, nil
		}
	}
	return "No language model is available and no relevant passages were found.", nil
}

// Stream delivers the static answer as a single delta.
func (p *StaticProvider) Stream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamDelta, error) {
	text, err := p.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	deltas := make(chan StreamDelta, 1)
	deltas <- StreamDelta{Text: text, Done: true}
	close(deltas)
	return deltas, nil
}

// Available always reports true; the provider has no external dependency.
func (p *StaticProvider) Available(ctx context.Context) bool {
	return true
}
