package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/corpus"
	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/models"
)

// State is the builder lifecycle state.
type State int

const (
	// StateAbsentOrCorrupt means no trusted index has been opened yet.
	StateAbsentOrCorrupt State = iota
	// StateReady means a validated index is open.
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "absent_or_corrupt"
}

// CorpusLoader yields the records an index is built from.
type CorpusLoader interface {
	Load(ctx context.Context) (*corpus.Corpus, error)
}

// Builder opens the index at a directory, building it first when it is missing or corrupt.
// Once ready it keeps serving the same store; use Rebuild to force a new build.
type Builder struct {
	dir      string
	embedder embedding.Embedder
	loader   CorpusLoader
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	store *Store
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a builder for the index directory dir.
func NewBuilder(dir string, embedder embedding.Embedder, loader CorpusLoader, opts ...BuilderOption) *Builder {
	b := &Builder{
		dir:      dir,
		embedder: embedder,
		loader:   loader,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ensure returns a ready store. An existing valid index is opened without embedding anything;
// otherwise the index is built from the corpus and replaces the directory wholesale.
func (b *Builder) Ensure(ctx context.Context) (*Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateReady {
		return b.store, nil
	}

	store, err := Open(b.dir, b.embedder)
	if err == nil {
		b.logger.Info("index opened",
			zap.String("path", b.dir),
			zap.Int("entries", store.Size()),
			zap.String("model", store.Meta().ModelName))
		b.setReady(store)
		return store, nil
	}
	if errors.Is(err, ErrNotFound) {
		b.logger.Info("index not found, building", zap.String("path", b.dir))
	} else {
		b.logger.Warn("index unusable, rebuilding", zap.String("path", b.dir), zap.Error(err))
	}
	return b.rebuildLocked(ctx)
}

// Rebuild builds the index from the corpus even if a valid one exists.
func (b *Builder) Rebuild(ctx context.Context) (*Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rebuildLocked(ctx)
}

func (b *Builder) rebuildLocked(ctx context.Context) (*Store, error) {
	start := time.Now()
	if err := b.build(ctx); err != nil {
		return nil, err
	}
	store, err := Open(b.dir, b.embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to open rebuilt index: %w", err)
	}
	if b.store != nil {
		_ = b.store.Close()
	}
	b.logger.Info("index built",
		zap.String("path", b.dir),
		zap.Int("entries", store.Size()),
		zap.String("source", store.Meta().Source),
		zap.Duration("elapsed", time.Since(start)))
	b.setReady(store)
	return store, nil
}

func (b *Builder) setReady(store *Store) {
	b.store = store
	b.state = StateReady
}

// build writes a complete index into a sibling temp directory and swaps it into place.
func (b *Builder) build(ctx context.Context) error {
	c, err := b.loader.Load(ctx)
	if err != nil {
		return err
	}
	docs := uniqueDocuments(corpus.BuildDocuments(c.Records, c.Source))
	if skipped := len(c.Records) - len(docs); skipped > 0 {
		b.logger.Warn("skipping duplicate records", zap.Int("skipped", skipped))
	}
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	vecs, err := b.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}
	entries := make([]models.VectorIndexEntry, len(docs))
	for i := range docs {
		entries[i] = models.VectorIndexEntry{Vector: vecs[i], Document: docs[i]}
	}

	parent := filepath.Dir(b.dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create index parent directory: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(b.dir)+".build-")
	if err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	store, err := Create(tmp, b.embedder)
	if err != nil {
		return err
	}
	if err := store.InsertBatch(ctx, entries); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to insert entries: %w", err)
	}
	if err := store.Persist(); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to persist index: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	return replaceDir(tmp, b.dir)
}

// uniqueDocuments keeps the first document for each ID. IDs derive from content, so
// repeated records would otherwise take several retrieval slots with one text.
func uniqueDocuments(docs []models.IndexedDocument) []models.IndexedDocument {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0]
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// replaceDir moves src to dst, discarding whatever dst held.
func replaceDir(src, dst string) error {
	old := dst + ".old"
	_ = os.RemoveAll(old)
	if err := os.Rename(dst, old); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to move old index aside: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		_ = os.Rename(old, dst)
		return fmt.Errorf("failed to install index: %w", err)
	}
	return os.RemoveAll(old)
}

// Close releases the current store.
func (b *Builder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store == nil {
		return nil
	}
	err := b.store.Close()
	b.store = nil
	b.state = StateAbsentOrCorrupt
	return err
}
