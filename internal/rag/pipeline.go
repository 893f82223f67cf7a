package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/llm"
	"github.com/hyperjump/faqrag/internal/models"
)

// Pipeline stages.
const (
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// StageError wraps a failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retriever returns the documents relevant to a question, best first.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.IndexedDocument, error)
}

// Pipeline answers one question: retrieve, format context, build prompt, generate.
type Pipeline struct {
	retriever Retriever
	generator llm.Generator
	logger    *zap.Logger
}

// NewPipeline creates a pipeline. A nil logger is replaced by a no-op logger.
func NewPipeline(retriever Retriever, generator llm.Generator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{retriever: retriever, generator: generator, logger: logger}
}

// Answer runs the pipeline and returns the generated text.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	docs, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", &StageError{Stage: StageRetrieve, Err: err}
	}
	p.logger.Debug("retrieved context", zap.Int("documents", len(docs)))

	prompt := BuildPrompt(FormatContext(docs), question)
	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &StageError{Stage: StageGenerate, Err: err}
	}
	return answer, nil
}
