package rag

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/corpus"
	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/index"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.IndexPath = filepath.Join(t.TempDir(), "faq_index")
	cfg.Embedding.Provider = embedding.ProviderHashing
	cfg.Embedding.Dimensions = 256
	cfg.LLM.APIKeyEnv = "FAQRAG_TEST_UNSET_KEY"
	cfg.LLM.TimeoutSecs = 5
	return cfg
}

func TestApp_AnswersFromMatchingRecord(t *testing.T) {
	gen := &groundedGenerator{}
	app := NewApp(testAppConfig(t), WithGenerator(gen), WithCorpusLoader(&countingLoader{inner: demoCorpus()}))
	defer app.Close()

	answer := app.AnswerQuestion(context.Background(), "Kredi kartı başvurusu nasıl yapılır?")
	if !strings.Contains(answer, "Akbank Mobil") {
		t.Errorf("answer should mention Akbank Mobil, got %q", answer)
	}
	if !strings.HasPrefix(answer, "Soru: Kredi kartı başvurusu nasıl yapılır?") {
		t.Errorf("matching record should rank first, got %q", answer)
	}
}

func TestApp_OutOfDomainRefuses(t *testing.T) {
	gen := &groundedGenerator{}
	app := NewApp(testAppConfig(t), WithGenerator(gen), WithCorpusLoader(&countingLoader{inner: demoCorpus()}))
	defer app.Close()

	if got := app.AnswerQuestion(context.Background(), "Bugün hava nasıl olacak?"); got != refusal {
		t.Errorf("expected refusal, got %q", got)
	}
	if gen.calls() != 1 {
		t.Errorf("generator calls = %d", gen.calls())
	}
}

func TestApp_GeneratorFailureIsRendered(t *testing.T) {
	gen := &groundedGenerator{failN: 1}
	loader := &countingLoader{inner: demoCorpus()}
	app := NewApp(testAppConfig(t), WithGenerator(gen), WithCorpusLoader(loader))
	defer app.Close()
	ctx := context.Background()

	got := app.AnswerQuestion(ctx, "Şifremi nasıl değiştirebilirim?")
	if !strings.HasPrefix(got, ErrorAnswerPrefix) || !strings.Contains(got, "service unavailable") {
		t.Fatalf("unexpected error answer %q", got)
	}
	got = app.AnswerQuestion(ctx, "Şifremi nasıl değiştirebilirim?")
	if strings.HasPrefix(got, ErrorAnswerPrefix) {
		t.Fatalf("second question should succeed, got %q", got)
	}
	if loader.calls.Load() != 1 {
		t.Errorf("index built %d times", loader.calls.Load())
	}
}

func TestApp_MissingAPIKeyIsRendered(t *testing.T) {
	t.Setenv("FAQRAG_TEST_UNSET_KEY", "")
	app := NewApp(testAppConfig(t), WithCorpusLoader(&countingLoader{inner: demoCorpus()}))
	defer app.Close()
	got := app.AnswerQuestion(context.Background(), "Döviz hesabı açmak için ne gerekiyor?")
	if !strings.HasPrefix(got, ErrorAnswerPrefix) || !strings.Contains(got, "missing API key") {
		t.Errorf("got %q", got)
	}
}

func TestApp_EmptyQuestion(t *testing.T) {
	gen := &groundedGenerator{}
	loader := &countingLoader{inner: demoCorpus()}
	app := NewApp(testAppConfig(t), WithGenerator(gen), WithCorpusLoader(loader))
	defer app.Close()
	if got := app.AnswerQuestion(context.Background(), "   "); got != EmptyQuestion {
		t.Errorf("got %q", got)
	}
	if gen.calls() != 0 || loader.calls.Load() != 0 {
		t.Error("empty question must not reach the pipeline")
	}
}

func TestApp_UnreachableHubBuildsDemoIndex(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	hubURL := srv.URL
	srv.Close()

	cfg := testAppConfig(t)
	cfg.Corpus.HubURL = hubURL
	app := NewApp(cfg, WithGenerator(&groundedGenerator{}))
	defer app.Close()

	if err := app.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	st, err := app.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.State != index.StateReady.String() || st.Entries != 5 {
		t.Errorf("status = %+v", st)
	}
	if st.Source != "akbank/faq-tr (Demo Veri Seti)" {
		t.Errorf("source = %q", st.Source)
	}
}

func TestApp_WarmupEmptyCorpusIsFatal(t *testing.T) {
	app := NewApp(testAppConfig(t), WithCorpusLoader(&countingLoader{err: corpus.ErrEmptyCorpus}))
	defer app.Close()
	if err := app.Warmup(context.Background()); !errors.Is(err, corpus.ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestApp_ConcurrentFirstQuestionsShareInit(t *testing.T) {
	var embedders atomic.Int32
	loader := &countingLoader{inner: demoCorpus()}
	gen := &groundedGenerator{}
	app := NewApp(testAppConfig(t),
		WithGenerator(gen),
		WithCorpusLoader(loader),
		WithEmbedderFactory(func(cfg config.EmbeddingConfig, _ *zap.Logger) (embedding.Embedder, error) {
			embedders.Add(1)
			return embedding.NewHashingEmbedder(cfg.Dimensions), nil
		}),
	)
	defer app.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = app.AnswerQuestion(context.Background(), "Akbank mobil ile hangi işlemleri yapabilirim?")
		}()
	}
	wg.Wait()
	if embedders.Load() != 1 || loader.calls.Load() != 1 {
		t.Errorf("embedders=%d loads=%d, want 1 each", embedders.Load(), loader.calls.Load())
	}
	if gen.calls() != 8 {
		t.Errorf("generator calls = %d", gen.calls())
	}
}

func TestApp_FailedInitIsRetried(t *testing.T) {
	var attempts atomic.Int32
	app := NewApp(testAppConfig(t),
		WithGenerator(&groundedGenerator{}),
		WithCorpusLoader(&countingLoader{inner: demoCorpus()}),
		WithEmbedderFactory(func(cfg config.EmbeddingConfig, _ *zap.Logger) (embedding.Embedder, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.New("model busy")
			}
			return embedding.NewHashingEmbedder(cfg.Dimensions), nil
		}),
	)
	defer app.Close()

	if got := app.AnswerQuestion(context.Background(), "Şifremi nasıl değiştirebilirim?"); !strings.Contains(got, "model busy") {
		t.Fatalf("first answer = %q", got)
	}
	if got := app.AnswerQuestion(context.Background(), "Şifremi nasıl değiştirebilirim?"); strings.HasPrefix(got, ErrorAnswerPrefix) {
		t.Fatalf("second answer = %q", got)
	}
}

func TestApp_StatusBeforeBuild(t *testing.T) {
	app := NewApp(testAppConfig(t))
	defer app.Close()
	st, err := app.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.State != index.StateAbsentOrCorrupt.String() || st.Error == "" {
		t.Errorf("status = %+v", st)
	}
	if st.Embedder != "hashing-256" || st.Model != "gemini-2.5-flash" {
		t.Errorf("status = %+v", st)
	}
}

func TestApp_CancelledFirstCallerDoesNotFailWaiters(t *testing.T) {
	loader := newGatedLoader(demoCorpus())
	app := NewApp(testAppConfig(t), WithGenerator(&groundedGenerator{}), WithCorpusLoader(loader))
	defer app.Close()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan string, 1)
	go func() {
		firstDone <- app.AnswerQuestion(firstCtx, "Şifremi nasıl değiştirebilirim?")
	}()
	<-loader.started

	secondDone := make(chan string, 1)
	go func() {
		secondDone <- app.AnswerQuestion(context.Background(), "Kredi kartı başvurusu nasıl yapılır?")
	}()

	cancelFirst()
	if got := <-firstDone; !strings.HasPrefix(got, ErrorAnswerPrefix) || !strings.Contains(got, context.Canceled.Error()) {
		t.Errorf("cancelled caller got %q", got)
	}
	close(loader.release)

	if got := <-secondDone; !strings.Contains(got, "Akbank Mobil") {
		t.Errorf("waiting caller should get the shared build, got %q", got)
	}
	if loader.calls.Load() != 1 {
		t.Errorf("corpus loaded %d times, want 1", loader.calls.Load())
	}
}

func TestApp_MountainQuestionIsRefused(t *testing.T) {
	gen := &groundedGenerator{}
	app := NewApp(testAppConfig(t), WithGenerator(gen), WithCorpusLoader(&countingLoader{inner: demoCorpus()}))
	defer app.Close()

	const question = "Dünyanın en yüksek dağı nedir?"
	if got := app.AnswerQuestion(context.Background(), question); got != refusal {
		t.Errorf("expected refusal, got %q", got)
	}
	if gen.calls() != 1 {
		t.Fatalf("generator calls = %d", gen.calls())
	}

	prompt := gen.prompts[0]
	if !strings.HasSuffix(prompt, "Kullanıcı Sorusu: "+question+"\n") {
		t.Errorf("prompt does not end with the question: %q", prompt)
	}
	ctxStart := strings.Index(prompt, "Bağlam:\n") + len("Bağlam:\n")
	ctxEnd := strings.LastIndex(prompt, "\n\nKullanıcı Sorusu: ")
	blocks := strings.Split(prompt[ctxStart:ctxEnd], "\n\n")
	if len(blocks) != 3 {
		t.Fatalf("expected 3 context documents, got %d: %q", len(blocks), blocks)
	}
	known := make(map[string]bool)
	for _, r := range corpus.DemoRecords() {
		known[corpus.Content(r)] = true
	}
	seen := make(map[string]bool)
	for _, b := range blocks {
		if !known[b] {
			t.Errorf("context block is not a corpus document: %q", b)
		}
		if seen[b] {
			t.Errorf("context block repeated: %q", b)
		}
		seen[b] = true
		if strings.Contains(strings.ToLower(b), "dağ") {
			t.Errorf("context block unexpectedly about mountains: %q", b)
		}
	}
}
