package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	deverrors "github.com/devmind-ai/devmind/internal/errors"
)

// Ollama generation defaults
const (
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultOllamaModel    = "qwen2.5-coder:7b"
	DefaultGenTimeout     = 120 * time.Second
	DefaultStreamTimeout  = 300 * time.Second
	ollamaGenPoolSize     = 4
	ollamaGenMaxLineBytes = 1 << 20
)

// OllamaProviderConfig configures the Ollama generation client.
type OllamaProviderConfig struct {
	Host          string
	Model         string
	Timeout       time.Duration
	StreamTimeout time.Duration
	Retry         deverrors.RetryConfig
}

// DefaultOllamaProviderConfig returns the standard settings.
func DefaultOllamaProviderConfig() OllamaProviderConfig {
	return OllamaProviderConfig{
		Host:          DefaultOllamaHost,
		Model:         DefaultOllamaModel,
		Timeout:       DefaultGenTimeout,
		StreamTimeout: DefaultStreamTimeout,
		Retry:         deverrors.DefaultRetryConfig(),
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaProvider generates text via Ollama's /api/generate endpoint.
type OllamaProvider struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaProviderConfig

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates an Ollama generation provider. Construction does
// not probe the backend; use Available to check reachability.
func NewOllamaProvider(cfg OllamaProviderConfig) *OllamaProvider {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = deverrors.DefaultRetryConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        ollamaGenPoolSize,
		MaxIdleConnsPerHost: ollamaGenPoolSize,
		MaxConnsPerHost:     ollamaGenPoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &OllamaProvider{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}
}

// Name identifies the provider.
func (p *OllamaProvider) Name() string {
	return "ollama:" + p.config.Model
}

// Generate produces a complete response, retrying transient backend failures.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return "", deverrors.New(deverrors.ErrCodeProviderFailed, "provider is closed", nil)
	}
	p.mu.RUnlock()

	var response string
	err := deverrors.Retry(ctx, p.config.Retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		text, err := p.doGenerate(callCtx, prompt, opts)
		if err != nil {
			return deverrors.New(deverrors.ErrCodeProviderFailed, "generation failed", err)
		}
		response = text
		return nil
	})
	return response, err
}

func (p *OllamaProvider) doGenerate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   p.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: optionsMap(opts),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}

	return result.Response, nil
}

// Stream produces deltas from Ollama's JSON-lines streaming response. The
// returned channel closes when the model finishes, the stream errors, or
// ctx is cancelled.
func (p *OllamaProvider) Stream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamDelta, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, deverrors.New(deverrors.ErrCodeProviderFailed, "provider is closed", nil)
	}
	p.mu.RUnlock()

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   p.config.Model,
		Prompt:  prompt,
		Stream:  true,
		Options: optionsMap(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, p.config.StreamTimeout)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, p.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		cancel()
		return nil, deverrors.New(deverrors.ErrCodeBackendUnavailable, "failed to start stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		cancel()
		return nil, deverrors.New(deverrors.ErrCodeProviderFailed,
			fmt.Sprintf("stream failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	deltas := make(chan StreamDelta)
	go func() {
		defer close(deltas)
		defer cancel()
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), ollamaGenMaxLineBytes)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var chunk ollamaGenerateResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				sendDelta(streamCtx, deltas, StreamDelta{Err: fmt.Errorf("malformed stream chunk: %w", err), Done: true})
				return
			}
			if chunk.Error != "" {
				sendDelta(streamCtx, deltas, StreamDelta{Err: fmt.Errorf("ollama error: %s", chunk.Error), Done: true})
				return
			}

			if !sendDelta(streamCtx, deltas, StreamDelta{Text: chunk.Response, Done: chunk.Done}) {
				return
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
			sendDelta(streamCtx, deltas, StreamDelta{Err: err, Done: true})
		}
	}()

	return deltas, nil
}

// sendDelta delivers a delta unless the consumer cancelled.
func sendDelta(ctx context.Context, ch chan<- StreamDelta, d StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// Available checks whether Ollama responds to /api/tags.
func (p *OllamaProvider) Available(ctx context.Context) bool {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return false
	}
	p.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, p.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases HTTP resources.
func (p *OllamaProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.transport.CloseIdleConnections()
	return nil
}

func optionsMap(opts GenerateOptions) map[string]any {
	m := make(map[string]any)
	if opts.Temperature > 0 {
		m["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		m["num_predict"] = opts.MaxTokens
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
