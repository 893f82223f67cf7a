// Package rag wires retrieval and generation into the question answering entry point.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/corpus"
	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/index"
	"github.com/hyperjump/faqrag/internal/llm"
	"github.com/hyperjump/faqrag/internal/retrieval"
)

// User-facing messages.
const (
	ErrorAnswerPrefix = "Üzgünüm, yanıt alınırken bir hata oluştu. Hata detayları: "
	EmptyQuestion     = "Lütfen bir soru yazın."
)

// EmbedderFactory creates the embedder.
type EmbedderFactory func(cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error)

// GeneratorFactory creates the answer generator.
type GeneratorFactory func(cfg config.LLMConfig, logger *zap.Logger) (llm.Generator, error)

// App is the application context shared by every user surface. The embedder, the index
// and the generator are created on first use, at most once each; a failed creation is
// retried by the next caller.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	newEmbedder  EmbedderFactory
	newGenerator GeneratorFactory
	loader       index.CorpusLoader

	group singleflight.Group

	mu        sync.Mutex
	embedder  embedding.Embedder
	builder   *index.Builder
	store     *index.Store
	generator llm.Generator
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEmbedderFactory replaces embedding.New.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(a *App) {
		a.newEmbedder = f
	}
}

// WithGeneratorFactory replaces the hosted chat client.
func WithGeneratorFactory(f GeneratorFactory) Option {
	return func(a *App) {
		a.newGenerator = f
	}
}

// WithGenerator uses g for every question.
func WithGenerator(g llm.Generator) Option {
	return WithGeneratorFactory(func(config.LLMConfig, *zap.Logger) (llm.Generator, error) {
		return g, nil
	})
}

// WithCorpusLoader replaces the configured corpus loader.
func WithCorpusLoader(l index.CorpusLoader) Option {
	return func(a *App) {
		a.loader = l
	}
}

// NewApp creates the application context. Nothing is loaded until first use or Warmup.
func NewApp(cfg *config.Config, opts ...Option) *App {
	a := &App{
		cfg:         cfg,
		logger:      zap.NewNop(),
		newEmbedder: embedding.New,
	}
	a.newGenerator = func(c config.LLMConfig, logger *zap.Logger) (llm.Generator, error) {
		return llm.NewClient(c, llm.WithLogger(logger))
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.loader == nil {
		a.loader = corpus.NewLoader(cfg.Corpus, corpus.WithLogger(a.logger))
	}
	return a
}

// Warmup opens or builds the index. Callers treat corpus.ErrEmptyCorpus as fatal.
func (a *App) Warmup(ctx context.Context) error {
	_, err := a.Store(ctx)
	return err
}

// AnswerQuestion answers question and never fails: errors are rendered into the reply.
func (a *App) AnswerQuestion(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return EmptyQuestion
	}
	answer, err := a.Answer(ctx, question)
	if err != nil {
		a.logger.Error("failed to answer question", zap.Error(err))
		return ErrorAnswerPrefix + err.Error()
	}
	return answer
}

// Answer runs the pipeline for question, initializing components on first use.
func (a *App) Answer(ctx context.Context, question string) (string, error) {
	store, err := a.Store(ctx)
	if err != nil {
		return "", err
	}
	generator, err := a.Generator(ctx)
	if err != nil {
		return "", err
	}
	if secs := a.cfg.LLM.TimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}
	start := time.Now()
	p := NewPipeline(retrieval.NewRetriever(store, a.cfg.Retrieval.TopK), generator, a.logger)
	answer, err := p.Answer(ctx, question)
	if err != nil {
		return "", err
	}
	a.logger.Info("question answered", zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}

// Embedder returns the shared embedder.
func (a *App) Embedder(ctx context.Context) (embedding.Embedder, error) {
	a.mu.Lock()
	e := a.embedder
	a.mu.Unlock()
	if e != nil {
		return e, nil
	}
	v, err := a.shared(ctx, "embedder", func(context.Context) (interface{}, error) {
		a.mu.Lock()
		cached := a.embedder
		a.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		e, err := a.newEmbedder(a.cfg.Embedding, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		a.mu.Lock()
		a.embedder = e
		a.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(embedding.Embedder), nil
}

// Store returns the ready index, building it on first use.
func (a *App) Store(ctx context.Context) (*index.Store, error) {
	a.mu.Lock()
	s := a.store
	a.mu.Unlock()
	if s != nil {
		return s, nil
	}
	v, err := a.shared(ctx, "store", func(ctx context.Context) (interface{}, error) {
		b, err := a.indexBuilder(ctx)
		if err != nil {
			return nil, err
		}
		s, err := b.Ensure(ctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.store = s
		a.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*index.Store), nil
}

// Rebuild forces a new index build from the corpus and serves it from then on.
func (a *App) Rebuild(ctx context.Context) (*index.Store, error) {
	v, err := a.shared(ctx, "rebuild", func(ctx context.Context) (interface{}, error) {
		b, err := a.indexBuilder(ctx)
		if err != nil {
			return nil, err
		}
		s, err := b.Rebuild(ctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.store = s
		a.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*index.Store), nil
}

// shared runs fn once for all concurrent callers of key. fn gets a context that keeps
// ctx's values but not its cancellation, so one caller leaving does not fail the others;
// each caller still stops waiting when its own ctx is done.
func (a *App) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (a *App) indexBuilder(ctx context.Context) (*index.Builder, error) {
	e, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.builder == nil {
		a.builder = index.NewBuilder(a.cfg.Storage.IndexPath, e, a.loader, index.WithLogger(a.logger))
	}
	return a.builder, nil
}

// Generator returns the shared answer generator.
func (a *App) Generator(ctx context.Context) (llm.Generator, error) {
	a.mu.Lock()
	g := a.generator
	a.mu.Unlock()
	if g != nil {
		return g, nil
	}
	v, err := a.shared(ctx, "generator", func(context.Context) (interface{}, error) {
		a.mu.Lock()
		cached := a.generator
		a.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		g, err := a.newGenerator(a.cfg.LLM, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		a.mu.Lock()
		a.generator = g
		a.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(llm.Generator), nil
}

// Status describes the index and the models in use.
type Status struct {
	State     string    `json:"state"`
	IndexPath string    `json:"index_path"`
	Entries   int       `json:"entries"`
	Source    string    `json:"source,omitempty"`
	BuiltAt   time.Time `json:"built_at"`
	Embedder  string    `json:"embedder"`
	Model     string    `json:"model"`
	Error     string    `json:"error,omitempty"`
}

// Status reports the index state without building it. An index that is not loaded yet
// is probed on disk.
func (a *App) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		State:     index.StateAbsentOrCorrupt.String(),
		IndexPath: a.cfg.Storage.IndexPath,
		Model:     a.cfg.LLM.Model,
	}
	e, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	st.Embedder = e.Name()

	a.mu.Lock()
	store := a.store
	a.mu.Unlock()
	if store == nil {
		store, err = index.Open(a.cfg.Storage.IndexPath, e)
		if err != nil {
			st.Error = err.Error()
			return st, nil
		}
		defer store.Close()
	}
	meta := store.Meta()
	st.State = index.StateReady.String()
	st.Entries = store.Size()
	st.Source = meta.Source
	st.BuiltAt = meta.BuiltAt
	return st, nil
}

// Close releases the index and the embedder.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	if a.builder != nil {
		errs = append(errs, a.builder.Close())
		a.builder = nil
		a.store = nil
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
		a.embedder = nil
	}
	return errors.Join(errs...)
}
