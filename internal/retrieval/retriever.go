// Package retrieval selects the FAQ documents most relevant to a question.
package retrieval

import (
	"context"

	"github.com/hyperjump/faqrag/internal/models"
)

// DefaultTopK is the number of documents handed to the generator.
const DefaultTopK = 3

// Querier is the similarity search the retriever runs against; *index.Store implements it.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]models.ScoredDocument, error)
}

// Retriever returns the top-k documents for a question, best first.
type Retriever struct {
	index Querier
	k     int
}

// NewRetriever creates a retriever. k outside [1, DefaultTopK] uses DefaultTopK.
func NewRetriever(index Querier, k int) *Retriever {
	if k <= 0 || k > DefaultTopK {
		k = DefaultTopK
	}
	return &Retriever{index: index, k: k}
}

// K returns the number of documents requested per question.
func (r *Retriever) K() int {
	return r.k
}

// Retrieve returns up to k documents in ranked order. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.IndexedDocument, error) {
	scored, err := r.index.Query(ctx, question, r.k)
	if err != nil {
		return nil, err
	}
	if len(scored) > r.k {
		scored = scored[:r.k]
	}
	docs := make([]models.IndexedDocument, len(scored))
	for i, s := range scored {
		docs[i] = s.Document
	}
	return docs, nil
}
