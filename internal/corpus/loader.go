// Package corpus loads FAQ records and turns them into indexable documents.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/models"
)

// Source yields raw FAQ records.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]models.FAQRecord, error)
}

// Corpus is a loaded record set with its provenance.
type Corpus struct {
	Records []models.FAQRecord
	// Source is the provenance stored on every document built from Records.
	Source string
	Demo   bool
}

// Loader reads the configured source and applies the fallback policy.
type Loader struct {
	source   Source
	dataset  string
	fallback string
	logger   *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSource replaces the configured source.
func WithSource(s Source) Option {
	return func(l *Loader) {
		l.source = s
	}
}

// WithHTTPClient sets the client used by the hub source.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if hs, ok := l.source.(*HubSource); ok {
			hs.client = client
		}
	}
}

// NewLoader builds a loader from cfg. A configured file takes precedence over the hub dataset.
func NewLoader(cfg config.CorpusConfig, opts ...Option) *Loader {
	l := &Loader{
		dataset:  cfg.Dataset,
		fallback: cfg.Fallback,
		logger:   zap.NewNop(),
	}
	if cfg.File != "" {
		l.source = NewFileSource(cfg.File)
	} else {
		l.source = NewHubSource(cfg, nil)
	}
	if l.fallback == "" {
		l.fallback = config.FallbackDemo
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the corpus. A source that fails or yields no usable records falls back to
// the demo records unless the policy is "fail". ErrEmptyCorpus is returned only when no
// usable corpus remains, never as a silent empty corpus.
func (l *Loader) Load(ctx context.Context) (*Corpus, error) {
	l.logger.Info("loading corpus", zap.String("source", l.source.Name()))
	records, err := l.source.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var srcErr *SourceError
		if !errors.As(err, &srcErr) {
			err = &SourceError{Source: l.source.Name(), Err: err}
		}
		return l.fallbackCorpus(err)
	}

	valid := make([]models.FAQRecord, 0, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.Question) == "" || strings.TrimSpace(r.Answer) == "" {
			l.logger.Warn("skipping incomplete record", zap.Int("row", i))
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return l.fallbackCorpus(fmt.Errorf("%w: %s has %d rows, none usable", ErrEmptyCorpus, l.source.Name(), len(records)))
	}
	l.logger.Info("corpus loaded",
		zap.String("source", l.source.Name()),
		zap.Int("records", len(valid)),
		zap.Int("skipped", len(records)-len(valid)))
	return &Corpus{Records: valid, Source: l.source.Name()}, nil
}

// fallbackCorpus applies the fallback policy to a source that produced nothing usable.
func (l *Loader) fallbackCorpus(cause error) (*Corpus, error) {
	if l.fallback == config.FallbackFail {
		return nil, cause
	}
	records := DemoRecords()
	if len(records) == 0 {
		return nil, ErrEmptyCorpus
	}
	l.logger.Warn("corpus source unusable, using demo records",
		zap.String("source", l.source.Name()), zap.Error(cause))
	return &Corpus{
		Records: records,
		Source:  l.dataset + DemoSuffix,
		Demo:    true,
	}, nil
}
