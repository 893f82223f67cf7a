package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/faqrag/internal/corpus"
	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/index"
	"github.com/hyperjump/faqrag/internal/models"
)

type staticLoader struct{ records []models.FAQRecord }

func (s staticLoader) Load(context.Context) (*corpus.Corpus, error) {
	return &corpus.Corpus{Records: s.records, Source: "test"}, nil
}

func TestRetriever_TopThreeFromStore(t *testing.T) {
	records := append(corpus.DemoRecords(),
		models.FAQRecord{Question: "Kredi kartı aidatı ne kadar?", Answer: "Kart türüne göre değişir."},
		models.FAQRecord{Question: "Kredi kartı limiti nasıl artırılır?", Answer: "Akbank Mobil üzerinden talep edebilirsiniz."},
	)
	b := index.NewBuilder(filepath.Join(t.TempDir(), "idx"), embedding.NewHashingEmbedder(256), staticLoader{records})
	defer b.Close()
	store, err := b.Ensure(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(store, 0)
	if r.K() != DefaultTopK {
		t.Errorf("K = %d", r.K())
	}
	target := records[0]
	docs, err := r.Retrieve(context.Background(), corpus.Content(target))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	if docs[0].Metadata.SourceQuestion != target.Question {
		t.Errorf("top document = %q, want %q", docs[0].Metadata.SourceQuestion, target.Question)
	}

	scored, _ := store.Query(context.Background(), corpus.Content(target), 3)
	for i := range scored {
		if scored[i].Document.ID != docs[i].ID {
			t.Errorf("rank %d differs from store order", i)
		}
		if i > 0 && scored[i].Score > scored[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

type fakeQuerier struct {
	results []models.ScoredDocument
	err     error
	gotK    int
}

func (f *fakeQuerier) Query(_ context.Context, _ string, k int) ([]models.ScoredDocument, error) {
	f.gotK = k
	return f.results, f.err
}

func TestRetriever_SmallIndexAndErrors(t *testing.T) {
	q := &fakeQuerier{results: []models.ScoredDocument{{Document: models.IndexedDocument{ID: "only"}, Score: 0.4}}}
	docs, err := NewRetriever(q, 3).Retrieve(context.Background(), "soru")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "only" || q.gotK != 3 {
		t.Errorf("docs=%v k=%d", docs, q.gotK)
	}

	empty := &fakeQuerier{}
	docs, err = NewRetriever(empty, 3).Retrieve(context.Background(), "soru")
	if err != nil || len(docs) != 0 {
		t.Errorf("empty index: docs=%v err=%v", docs, err)
	}

	boom := errors.New("boom")
	if _, err := NewRetriever(&fakeQuerier{err: boom}, 3).Retrieve(context.Background(), "soru"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestNewRetriever_CapsK(t *testing.T) {
	tests := []struct {
		k, want int
	}{
		{-1, DefaultTopK},
		{0, DefaultTopK},
		{1, 1},
		{3, 3},
		{10, DefaultTopK},
	}
	for _, tt := range tests {
		if got := NewRetriever(nil, tt.k).K(); got != tt.want {
			t.Errorf("NewRetriever(k=%d).K() = %d, want %d", tt.k, got, tt.want)
		}
	}
}
