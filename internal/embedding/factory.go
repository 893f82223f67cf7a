package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/config"
)

// Provider names accepted by New.
const (
	ProviderONNX    = "onnx"
	ProviderHashing = "hashing"
)

// ONNXConfig configures NewONNXEmbedder.
type ONNXConfig struct {
	ModelName   string
	ModelPath   string
	LibraryPath string
	OutputName  string
	Dimensions  int
	MaxTokens   int
	Threads     int
	CacheSize   int
	// TokenTypeIDs feeds a token_type_ids input (BERT-style models); XLM-R/MPNet exports have none.
	TokenTypeIDs bool
	// Tokenizer defaults to SimpleTokenizer when nil.
	Tokenizer Tokenizer
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.ModelName == "" {
		c.ModelName = c.ModelPath
	}
	if c.OutputName == "" {
		c.OutputName = "sentence_embedding"
	}
	if c.MaxTokens <= 2 {
		c.MaxTokens = 128
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.Tokenizer == nil {
		c.Tokenizer = &SimpleTokenizer{}
	}
	return c
}

// New creates the embedder selected by cfg.Provider. When the ONNX model cannot be loaded,
// it logs a warning and falls back to a HashingEmbedder of the same dimension.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case ProviderHashing:
		return NewHashingEmbedder(cfg.Dimensions), nil
	case ProviderONNX, "":
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, hashing)", cfg.Provider)
	}

	tokenizer := loadModelTokenizer(cfg, logger)
	onnxEmbedder, err := NewONNXEmbedder(ONNXConfig{
		ModelName:    cfg.ModelName,
		ModelPath:    cfg.ModelPath,
		LibraryPath:  cfg.LibraryPath,
		OutputName:   cfg.OutputName,
		Dimensions:   cfg.Dimensions,
		MaxTokens:    cfg.MaxTokens,
		Threads:      cfg.Threads,
		CacheSize:    cfg.CacheSize,
		TokenTypeIDs: cfg.TokenTypeIDs,
		Tokenizer:    tokenizer,
	})
	if err != nil {
		logger.Warn("ONNX embedder unavailable, falling back to hashing embedder",
			zap.String("model_path", cfg.ModelPath), zap.Error(err))
		return NewHashingEmbedder(cfg.Dimensions), nil
	}
	logger.Info("ONNX embedder loaded",
		zap.String("model", cfg.ModelName),
		zap.Int("dimensions", cfg.Dimensions),
		zap.Int("threads", cfg.Threads))
	return onnxEmbedder, nil
}

// loadModelTokenizer returns the first tokenizer that loads from TokenizerPath then VocabPath,
// or nil so the ONNX embedder uses SimpleTokenizer.
func loadModelTokenizer(cfg config.EmbeddingConfig, logger *zap.Logger) Tokenizer {
	for _, path := range []string{cfg.TokenizerPath, cfg.VocabPath} {
		if path == "" {
			continue
		}
		tok, err := LoadTokenizer(path)
		if err != nil {
			logger.Warn("model tokenizer unavailable", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Debug("model tokenizer loaded", zap.String("path", path), zap.String("type", fmt.Sprintf("%T", tok)))
		return tok
	}
	logger.Warn("no model tokenizer loaded, using hash tokenizer")
	return nil
}
