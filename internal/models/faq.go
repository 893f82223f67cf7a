// Package models defines core data structures for FAQ records, indexed documents, and chat turns.
package models

// FAQRecord is a single question/answer pair from the corpus. Records are immutable once loaded.
type FAQRecord struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// DocumentMetadata carries traceability information for an indexed document.
type DocumentMetadata struct {
	SourceQuestion string `json:"source_question" db:"source_question"`
	Source         string `json:"source" db:"source"`
}

// IndexedDocument is the indexable unit built from one FAQRecord.
type IndexedDocument struct {
	ID       string           `json:"id" db:"id"`
	Content  string           `json:"content" db:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

// VectorIndexEntry pairs a document with the embedding computed from its content.
type VectorIndexEntry struct {
	Vector   []float32
	Document IndexedDocument
}

// ScoredDocument is a retrieval hit. Higher Score means more similar.
type ScoredDocument struct {
	Document IndexedDocument `json:"document"`
	Score    float64         `json:"score"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message of an interactive session. The history is append-only
// and owned by the UI; the answer pipeline never writes it.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
