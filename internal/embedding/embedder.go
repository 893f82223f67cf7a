// Package embedding provides text embedding via ONNX Runtime, a hashing fallback, and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must be deterministic:
// the same text always yields the same vector for a given Name.
type Embedder interface {
	// Name identifies the model; an index built with one name is not reused by another.
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach runs embed for each text in order, stopping at the first error or cancellation.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
