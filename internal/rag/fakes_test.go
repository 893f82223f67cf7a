package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/faqrag/internal/corpus"
	"github.com/hyperjump/faqrag/internal/embedding"
)

const refusal = "Bu konuda bir bilgim bulunmuyor, lütfen bankanızla doğrudan iletişime geçin."

// groundedGenerator answers with the context when at least two of the question's longer
// words occur in it, and refuses otherwise.
type groundedGenerator struct {
	mu      sync.Mutex
	prompts []string
	failN   int
}

func (g *groundedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.failN > 0 {
		g.failN--
		return "", errors.New("service unavailable")
	}
	ctxStart := strings.Index(prompt, "Bağlam:\n")
	qStart := strings.LastIndex(prompt, "\n\nKullanıcı Sorusu: ")
	if ctxStart < 0 || qStart < 0 {
		return "", errors.New("malformed prompt")
	}
	rawContext := prompt[ctxStart+len("Bağlam:\n") : qStart]
	bctx := strings.ToLower(rawContext)
	question := strings.ToLower(prompt[qStart+len("\n\nKullanıcı Sorusu: "):])
	hits := 0
	for _, w := range embedding.Words(question) {
		if len([]rune(w)) > 4 && strings.Contains(bctx, w) {
			hits++
		}
	}
	if hits < 2 {
		return refusal, nil
	}
	return strings.SplitN(rawContext, "\n\n", 2)[0], nil
}

func (g *groundedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type countingLoader struct {
	inner *corpus.Corpus
	err   error
	calls atomic.Int32
}

func (c *countingLoader) Load(context.Context) (*corpus.Corpus, error) {
	c.calls.Add(1)
	return c.inner, c.err
}

func demoCorpus() *corpus.Corpus {
	return &corpus.Corpus{Records: corpus.DemoRecords(), Source: "akbank/faq-tr (Demo Veri Seti)", Demo: true}
}

// gatedLoader blocks every Load until release is closed and reports when the first Load starts.
type gatedLoader struct {
	inner   *corpus.Corpus
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGatedLoader(c *corpus.Corpus) *gatedLoader {
	return &gatedLoader{inner: c, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedLoader) Load(ctx context.Context) (*corpus.Corpus, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.inner, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
