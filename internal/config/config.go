// Package config loads DevMind configuration from YAML with DEVMIND_*
// environment overrides. Precedence: defaults, then config file, then env.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	deverrors "github.com/devmind-ai/devmind/internal/errors"
)

// DefaultConfigFile is looked up in the working directory when no path is
// given.
const DefaultConfigFile = ".devmind.yaml"

// Config is the complete DevMind configuration.
type Config struct {
	Workspace string          `yaml:"workspace" json:"workspace"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Embed     EmbedConfig     `yaml:"embed" json:"embed"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Generate  GenerateConfig  `yaml:"generate" json:"generate"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SearchConfig tunes the retrieval pipeline and the resilient façade.
type SearchConfig struct {
	// VectorWeight and KeywordWeight blend the two score sources. They are
	// normalized to sum 1 at pipeline construction.
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// MinScore drops results below this combined score.
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// TopK is the default result count.
	TopK int `yaml:"top_k" json:"top_k"`

	// IndexWeights are per-index multipliers for multi-index vector search.
	IndexWeights map[string]float64 `yaml:"index_weights" json:"index_weights"`

	// BM25 parameters.
	BM25K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b" json:"bm25_b"`

	// ProbeInterval is how often the health prober checks the vector backend.
	ProbeInterval time.Duration `yaml:"probe_interval" json:"probe_interval"`
}

// EmbedConfig selects and tunes the embedding provider.
type EmbedConfig struct {
	// Provider is "ollama" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// CacheConfig tunes the façade's result cache.
type CacheConfig struct {
	Size int           `yaml:"size" json:"size"`
	TTL  time.Duration `yaml:"ttl" json:"ttl"`
}

// GenerateConfig selects and tunes the generation provider.
type GenerateConfig struct {
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens  int           `yaml:"max_tokens" json:"max_tokens"`
	// Temperature for generation. Zero keeps the provider default.
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// RateLimitConfig tunes outbound generation admission control.
type RateLimitConfig struct {
	MaxRPM       int           `yaml:"max_rpm" json:"max_rpm"`
	Window       time.Duration `yaml:"window" json:"window"`
	QueueSize    int           `yaml:"queue_size" json:"queue_size"`
	QueueTimeout time.Duration `yaml:"queue_timeout" json:"queue_timeout"`
}

// LoggingConfig tunes structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Workspace: "default",
		Search: SearchConfig{
			VectorWeight:  0.7,
			KeywordWeight: 0.3,
			MinScore:      0.0,
			TopK:          10,
			IndexWeights: map[string]float64{
				"code":  1.0,
				"docs":  0.8,
				"notes": 0.5,
			},
			BM25K1:        1.5,
			BM25B:         0.75,
			ProbeInterval: 30 * time.Second,
		},
		Embed: EmbedConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			CacheSize:  1000,
		},
		Cache: CacheConfig{
			Size: 1024,
			TTL:  5 * time.Minute,
		},
		Generate: GenerateConfig{
			Model:      "qwen2.5-coder:7b",
			OllamaHost: "http://localhost:11434",
			Timeout:    120 * time.Second,
			MaxTokens:  1024,
		},
		RateLimit: RateLimitConfig{
			MaxRPM:       60,
			Window:       60 * time.Second,
			QueueSize:    10,
			QueueTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// DefaultConfigFile if path is empty and the file exists), then env
// overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, deverrors.New(deverrors.ErrCodeConfigInvalid,
				fmt.Sprintf("failed to parse %s", path), err)
		}
	case os.IsNotExist(err):
		if explicit {
			return nil, deverrors.New(deverrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path), err)
		}
	default:
		return nil, deverrors.New(deverrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to read %s", path), err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies DEVMIND_* environment variables. Env always wins
// over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DEVMIND_WORKSPACE"); v != "" {
		c.Workspace = v
	}
	if v := os.Getenv("DEVMIND_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("DEVMIND_KEYWORD_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.KeywordWeight = f
		}
	}
	if v := os.Getenv("DEVMIND_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.MinScore = f
		}
	}
	if v := os.Getenv("DEVMIND_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("DEVMIND_EMBED_PROVIDER"); v != "" {
		c.Embed.Provider = v
	}
	if v := os.Getenv("DEVMIND_EMBED_MODEL"); v != "" {
		c.Embed.Model = v
	}
	if v := os.Getenv("DEVMIND_OLLAMA_HOST"); v != "" {
		c.Embed.OllamaHost = v
		c.Generate.OllamaHost = v
	}
	if v := os.Getenv("DEVMIND_GENERATE_MODEL"); v != "" {
		c.Generate.Model = v
	}
	if v := os.Getenv("DEVMIND_MAX_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.MaxRPM = n
		}
	}
	if v := os.Getenv("DEVMIND_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.QueueSize = n
		}
	}
	if v := os.Getenv("DEVMIND_QUEUE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RateLimit.QueueTimeout = d
		}
	}
	if v := os.Getenv("DEVMIND_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("DEVMIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return deverrors.New(deverrors.ErrCodeConfigInvalid, "search weights must be non-negative", nil)
	}
	if c.Search.VectorWeight+c.Search.KeywordWeight <= 0 {
		return deverrors.New(deverrors.ErrCodeConfigInvalid, "search weights must not both be zero", nil)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return deverrors.New(deverrors.ErrCodeConfigInvalid, "min_score must be in [0, 1]", nil)
	}
	if c.Search.TopK <= 0 {
		return deverrors.New(deverrors.ErrCodeConfigInvalid, "top_k must be positive", nil)
	}
	if c.Search.BM25K1 <= 0 || c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return deverrors.New(deverrors.ErrCodeConfigInvalid, "bm25 parameters out of range", nil)
	}
	for name, w := range c.Search.IndexWeights {
		if w < 0 {
			return deverrors.New(deverrors.ErrCodeConfigInvalid,
				fmt.Sprintf("index weight for %q must be non-negative", name), nil)
		}
	}
	switch strings.ToLower(c.Embed.Provider) {
	case "ollama", "static":
	default:
		return deverrors.New(deverrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embed provider %q", c.Embed.Provider), nil)
	}
	if c.RateLimit.MaxRPM <= 0 {
		return deverrors.New(deverrors.ErrCodeConfigInvalid, "max_rpm must be positive", nil)
	}
	if c.RateLimit.QueueSize < 0 {
		return deverrors.New(deverrors.ErrCodeConfigInvalid, "queue_size must be non-negative", nil)
	}
	return nil
}
