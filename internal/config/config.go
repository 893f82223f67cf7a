// Package config provides configuration loading and structs for the faqrag assistant.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
}

// LogConfig overrides the logger level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the persisted index location.
type StorageConfig struct {
	IndexPath string `yaml:"index_path"`
}

// Corpus fallback policies.
const (
	FallbackDemo = "demo"
	FallbackFail = "fail"
)

// CorpusConfig describes where FAQ records come from.
type CorpusConfig struct {
	// Dataset is the hub dataset identifier, e.g. "akbank/faq-tr".
	Dataset     string `yaml:"dataset"`
	Subset      string `yaml:"subset"`
	Split       string `yaml:"split"`
	HubURL      string `yaml:"hub_url"`
	TokenEnv    string `yaml:"token_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	PageSize    int    `yaml:"page_size"`
	// File, when set, is read instead of the hub (.json, .yaml, .yml, .xlsx).
	File     string `yaml:"file"`
	Fallback string `yaml:"fallback"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is "onnx" (default) or "hashing".
	Provider    string `yaml:"provider"`
	ModelName   string `yaml:"model_name"`
	ModelPath   string `yaml:"model_path"`
	// TokenizerPath is the model's tokenizer.json; VocabPath (a WordPiece vocab.txt) is tried when it is missing.
	TokenizerPath string `yaml:"tokenizer_path"`
	VocabPath     string `yaml:"vocab_path"`
	LibraryPath   string `yaml:"library_path"`
	OutputName    string `yaml:"output_name"`
	Dimensions    int    `yaml:"dimensions"`
	MaxTokens     int    `yaml:"max_tokens"`
	Threads       int    `yaml:"threads"`
	CacheSize     int    `yaml:"cache_size"`
	// TokenTypeIDs feeds a token_type_ids input to the model.
	TokenTypeIDs bool `yaml:"token_type_ids"`
}

// MaxTopK bounds how many documents reach the prompt.
const MaxTopK = 3

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	// TopK is at most MaxTopK.
	TopK int `yaml:"top_k"`
}

// LLMConfig holds hosted chat model settings.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	// Temperature and MaxRetries are pointers so an explicit 0 survives ApplyDefaults.
	Temperature *float64 `yaml:"temperature"`
	TimeoutSecs int      `yaml:"timeout_secs"`
	MaxRetries  *int     `yaml:"max_retries"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Load reads and parses the config file at path, expands paths, and applies defaults.
// A missing file yields the defaults with paths resolved against the working directory.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		path = filepath.Join(".", filepath.Base(path))
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Corpus.File = expandPath(cfg.Corpus.File, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.TokenizerPath = expandPath(cfg.Embedding.TokenizerPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	cfg.Embedding.LibraryPath = expandPath(cfg.Embedding.LibraryPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot produce a working pipeline.
func (c *Config) Validate() error {
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", *t)
	}
	if r := c.LLM.MaxRetries; r != nil && *r < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", *r)
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.TopK > MaxTopK {
		return fmt.Errorf("retrieval.top_k must be within [1, %d], got %d", MaxTopK, c.Retrieval.TopK)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Corpus.Fallback {
	case FallbackDemo, FallbackFail:
	default:
		return fmt.Errorf("corpus.fallback must be %q or %q, got %q", FallbackDemo, FallbackFail, c.Corpus.Fallback)
	}
	switch c.Embedding.Provider {
	case "onnx", "hashing":
	default:
		return fmt.Errorf("unknown embedding provider: %s (supported: onnx, hashing)", c.Embedding.Provider)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
