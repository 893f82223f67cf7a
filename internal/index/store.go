// Package index persists FAQ documents with their embeddings and rebuilds them on demand.
package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/vector"
)

// Files inside an index directory. The database doubles as the marker file.
const (
	DatabaseFile = "faq.sqlite3"
	VectorsFile  = "vectors.bin"

	formatVersion = "faqrag-index-v1"
)

var (
	// ErrNotFound means the index directory or one of its files does not exist.
	ErrNotFound = errors.New("index not found")
	// ErrCorrupt means the index exists but cannot be trusted.
	ErrCorrupt = errors.New("index corrupt")
	// ErrReadOnly is returned when writing to a store opened with Open.
	ErrReadOnly = errors.New("index is read-only")
	// ErrDuplicateID is returned when an entry's document ID is already stored.
	ErrDuplicateID = errors.New("duplicate document id")
)

// Meta describes a built index.
type Meta struct {
	ModelName  string    `json:"model_name"`
	Dimensions int       `json:"dimensions"`
	Count      int       `json:"count"`
	Source     string    `json:"source"`
	BuiltAt    time.Time `json:"built_at"`
}

// Store is a vector index over FAQ documents backed by a SQLite document table and a
// binary vectors file. Stores returned by Open are read-only and safe for concurrent queries.
type Store struct {
	dir      string
	embedder embedding.Embedder
	vectors  *vector.MemoryIndex
	docs     map[string]models.IndexedDocument
	meta     Meta

	// db is only held by writable stores until Close.
	db       *sql.DB
	readOnly bool
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Create initializes an empty writable index in dir.
func Create(dir string, embedder embedding.Embedder) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	vectors, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Rollback journal: nothing but the database file remains once the build commits.
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{
		dir:      dir,
		embedder: embedder,
		vectors:  vectors,
		docs:     make(map[string]models.IndexedDocument),
		meta: Meta{
			ModelName:  embedder.Name(),
			Dimensions: embedder.Dimensions(),
		},
		db: db,
	}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		source_question TEXT NOT NULL,
		source TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_id ON documents(id);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertBatch stores entries in order. Vectors must match the embedder dimension.
func (s *Store) InsertBatch(ctx context.Context, entries []models.VectorIndexEntry) error {
	if s.readOnly {
		return ErrReadOnly
	}
	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	batch := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		ids[i] = e.Document.ID
		vecs[i] = e.Vector
		if len(e.Vector) != s.meta.Dimensions {
			return fmt.Errorf("%w: entry %d has %d, expected %d", vector.ErrDimensionMismatch, i, len(e.Vector), s.meta.Dimensions)
		}
		if _, ok := s.docs[e.Document.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.Document.ID)
		}
		if _, ok := batch[e.Document.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.Document.ID)
		}
		batch[e.Document.ID] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (position, id, content, content_hash, source_question, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	offset := s.vectors.Size()
	for i, e := range entries {
		d := e.Document
		if _, err := stmt.ExecContext(ctx, offset+i, d.ID, d.Content, ContentHash(d.Content),
			d.Metadata.SourceQuestion, d.Metadata.Source); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if err := s.vectors.Add(ctx, ids, vecs); err != nil {
		return err
	}
	for _, e := range entries {
		s.docs[e.Document.ID] = e.Document
		if e.Document.Metadata.Source != "" {
			s.meta.Source = e.Document.Metadata.Source
		}
	}
	return nil
}

// Persist writes the metadata rows and the vectors file. The marker row is written last.
func (s *Store) Persist() error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.meta.Count = s.vectors.Size()
	s.meta.BuiltAt = time.Now().UTC()
	if err := s.vectors.Save(filepath.Join(s.dir, VectorsFile)); err != nil {
		return fmt.Errorf("failed to save vectors: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	rows := [][2]string{
		{"model_name", s.meta.ModelName},
		{"dimensions", strconv.Itoa(s.meta.Dimensions)},
		{"count", strconv.Itoa(s.meta.Count)},
		{"source", s.meta.Source},
		{"built_at", s.meta.BuiltAt.Format(time.RFC3339Nano)},
		{"format", formatVersion},
	}
	for _, kv := range rows {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", kv[0], err)
		}
	}
	return tx.Commit()
}

// Open loads the index in dir read-only and validates it against embedder. It returns an
// error wrapping ErrNotFound when files are missing and ErrCorrupt when validation fails.
// Opening never writes to the directory.
func Open(dir string, embedder embedding.Embedder) (*Store, error) {
	dbPath := filepath.Join(dir, DatabaseFile)
	for _, p := range []string{dir, dbPath, filepath.Join(dir, VectorsFile)} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
			}
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer db.Close()

	meta, err := readMeta(db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if meta.ModelName != embedder.Name() {
		return nil, fmt.Errorf("%w: built with model %q, current model is %q", ErrCorrupt, meta.ModelName, embedder.Name())
	}
	if meta.Dimensions != embedder.Dimensions() {
		return nil, fmt.Errorf("%w: built with %d dimensions, embedder has %d", ErrCorrupt, meta.Dimensions, embedder.Dimensions())
	}

	docs, order, err := readDocuments(db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	vectors, err := vector.NewMemoryIndex(meta.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := vectors.Load(filepath.Join(dir, VectorsFile)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(order) != meta.Count || vectors.Size() != meta.Count {
		return nil, fmt.Errorf("%w: meta count %d, %d documents, %d vectors", ErrCorrupt, meta.Count, len(order), vectors.Size())
	}
	for i, id := range vectors.IDs() {
		if order[i] != id {
			return nil, fmt.Errorf("%w: vector %d belongs to %s, document is %s", ErrCorrupt, i, id, order[i])
		}
	}

	return &Store{
		dir:      dir,
		embedder: embedder,
		vectors:  vectors,
		docs:     docs,
		meta:     meta,
		readOnly: true,
	}, nil
}

func readMeta(db *sql.DB) (Meta, error) {
	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, err
	}
	defer rows.Close()
	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, err
	}

	if values["format"] != formatVersion {
		return Meta{}, fmt.Errorf("missing or unknown format marker %q", values["format"])
	}
	var meta Meta
	meta.ModelName = values["model_name"]
	meta.Source = values["source"]
	if meta.Dimensions, err = strconv.Atoi(values["dimensions"]); err != nil {
		return Meta{}, fmt.Errorf("invalid dimensions: %w", err)
	}
	if meta.Count, err = strconv.Atoi(values["count"]); err != nil {
		return Meta{}, fmt.Errorf("invalid count: %w", err)
	}
	if meta.BuiltAt, err = time.Parse(time.RFC3339Nano, values["built_at"]); err != nil {
		return Meta{}, fmt.Errorf("invalid built_at: %w", err)
	}
	return meta, nil
}

func readDocuments(db *sql.DB) (map[string]models.IndexedDocument, []string, error) {
	rows, err := db.Query(
		`SELECT id, content, content_hash, source_question, source
		 FROM documents ORDER BY position`,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	docs := make(map[string]models.IndexedDocument)
	var order []string
	for rows.Next() {
		var d models.IndexedDocument
		var hash string
		if err := rows.Scan(&d.ID, &d.Content, &hash, &d.Metadata.SourceQuestion, &d.Metadata.Source); err != nil {
			return nil, nil, err
		}
		if ContentHash(d.Content) != hash {
			return nil, nil, fmt.Errorf("content hash mismatch for document %s", d.ID)
		}
		docs[d.ID] = d
		order = append(order, d.ID)
	}
	return docs, order, rows.Err()
}

// Query embeds text and returns up to k documents, most similar first.
func (s *Store) Query(ctx context.Context, text string, k int) ([]models.ScoredDocument, error) {
	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := s.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]models.ScoredDocument, 0, len(hits))
	for _, h := range hits {
		doc, ok := s.docs[h.ID]
		if !ok {
			continue
		}
		results = append(results, models.ScoredDocument{Document: doc, Score: h.Score})
	}
	return results, nil
}

// Size returns the number of stored entries.
func (s *Store) Size() int {
	return s.vectors.Size()
}

// Meta returns the index metadata.
func (s *Store) Meta() Meta {
	return s.meta
}

// Dir returns the index directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the database of a writable store. The embedder is owned by the caller.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
