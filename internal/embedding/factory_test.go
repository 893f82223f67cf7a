package embedding

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/config"
)

func TestNew_Hashing(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: ProviderHashing, Dimensions: 16}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.Dimensions() != 16 || e.Name() != "hashing-16" {
		t.Errorf("got %s/%d", e.Name(), e.Dimensions())
	}
}

func TestNew_ONNXMissingModelFallsBack(t *testing.T) {
	cfg := config.EmbeddingConfig{
		Provider:      ProviderONNX,
		ModelName:     "missing-model",
		ModelPath:     filepath.Join(t.TempDir(), "missing.onnx"),
		TokenizerPath: filepath.Join(t.TempDir(), "missing-tokenizer.json"),
		VocabPath:     filepath.Join(t.TempDir(), "missing-vocab.txt"),
		Dimensions:    24,
	}
	e, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, ok := e.(*HashingEmbedder); !ok {
		t.Errorf("expected hashing fallback, got %T", e)
	}
	if e.Dimensions() != 24 {
		t.Errorf("fallback dimension = %d, want 24", e.Dimensions())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(config.EmbeddingConfig{Provider: "gpu", Dimensions: 8}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLoadModelTokenizer_FallsBackToVocab(t *testing.T) {
	dir := t.TempDir()
	vocab := filepath.Join(dir, "vocab.txt")
	if err := os.WriteFile(vocab, []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\nkredi\n"), 0600); err != nil {
		t.Fatal(err)
	}
	tok := loadModelTokenizer(config.EmbeddingConfig{
		TokenizerPath: filepath.Join(dir, "missing.json"),
		VocabPath:     vocab,
	}, zap.NewNop())
	if _, ok := tok.(*VocabTokenizer); !ok {
		t.Fatalf("got %T, want *VocabTokenizer", tok)
	}
	if tok := loadModelTokenizer(config.EmbeddingConfig{}, zap.NewNop()); tok != nil {
		t.Errorf("got %T, want nil without paths", tok)
	}
}
