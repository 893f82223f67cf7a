package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/faqrag/internal/corpus"
	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/models"
)

func writeIndex(t *testing.T, dir string, e embedding.Embedder, records []models.FAQRecord) {
	t.Helper()
	ctx := context.Background()
	docs := corpus.BuildDocuments(records, "test")
	store, err := Create(dir, e)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	entries := make([]models.VectorIndexEntry, len(docs))
	for i, d := range docs {
		v, err := e.Embed(ctx, d.Content)
		if err != nil {
			t.Fatal(err)
		}
		entries[i] = models.VectorIndexEntry{Vector: v, Document: d}
	}
	if err := store.InsertBatch(ctx, entries); err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(); err != nil {
		t.Fatal(err)
	}
}

func TestStore_CreateOpenQuery(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	e := embedding.NewHashingEmbedder(256)
	writeIndex(t, dir, e, corpus.DemoRecords())

	store, err := Open(dir, e)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.Size() != 5 {
		t.Errorf("Size = %d", store.Size())
	}
	meta := store.Meta()
	if meta.ModelName != e.Name() || meta.Dimensions != 256 || meta.Count != 5 || meta.Source != "test" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.BuiltAt.IsZero() {
		t.Error("BuiltAt not set")
	}

	want := corpus.BuildDocument(corpus.DemoRecords()[3], "test")
	results, err := store.Query(context.Background(), want.Content, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Document.ID != want.ID {
		t.Errorf("top result = %q", results[0].Document.Metadata.SourceQuestion)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}
}

func TestStore_ReadOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	e := embedding.NewHashingEmbedder(32)
	writeIndex(t, dir, e, corpus.DemoRecords())
	store, err := Open(dir, e)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.InsertBatch(context.Background(), nil); !errors.Is(err, ErrReadOnly) {
		t.Errorf("InsertBatch: expected ErrReadOnly, got %v", err)
	}
	if err := store.Persist(); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Persist: expected ErrReadOnly, got %v", err)
	}
}

func TestStore_InsertDimensionMismatch(t *testing.T) {
	store, err := Create(t.TempDir(), embedding.NewHashingEmbedder(8))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	doc := corpus.BuildDocument(models.FAQRecord{Question: "q", Answer: "a"}, "s")
	err = store.InsertBatch(context.Background(), []models.VectorIndexEntry{{Vector: []float32{1}, Document: doc}})
	if err == nil {
		t.Error("expected dimension error")
	}
}

func TestOpen_NotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), embedding.NewHashingEmbedder(8))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpen_ModelMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	writeIndex(t, dir, embedding.NewHashingEmbedder(16), corpus.DemoRecords())
	_, err := Open(dir, embedding.NewHashingEmbedder(32))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestStore_InsertRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewHashingEmbedder(8)
	store, err := Create(t.TempDir(), e)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	doc := corpus.BuildDocument(models.FAQRecord{Question: "q", Answer: "a"}, "s")
	v, _ := e.Embed(ctx, doc.Content)
	entry := models.VectorIndexEntry{Vector: v, Document: doc}

	if err := store.InsertBatch(ctx, []models.VectorIndexEntry{entry, entry}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate in batch: expected ErrDuplicateID, got %v", err)
	}
	if store.Size() != 0 {
		t.Fatalf("rejected batch must add nothing, size = %d", store.Size())
	}
	if err := store.InsertBatch(ctx, []models.VectorIndexEntry{entry}); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertBatch(ctx, []models.VectorIndexEntry{entry}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate across batches: expected ErrDuplicateID, got %v", err)
	}
}
