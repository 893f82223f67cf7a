package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/hyperjump/faqrag/pkg/utils"
)

// HashingEmbedder is a deterministic feature-hashing embedder. Word unigrams and character
// trigrams are hashed into a fixed number of signed buckets and the result is L2-normalized,
// so texts sharing words or word stems land close together. It needs no model files and is
// used when the ONNX model is unavailable.
type HashingEmbedder struct {
	dimensions int
}

const (
	unigramWeight = 1.0
	trigramWeight = 0.5
)

// NewHashingEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Name identifies the embedder and its dimension.
func (e *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing-%d", e.dimensions)
}

// Embed returns the hashed feature vector of text.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, word := range Words(text) {
		e.add(emb, "w:"+word, unigramWeight)
		padded := []rune("#" + word + "#")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(emb, "c:"+string(padded[i:i+3]), trigramWeight)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func (e *HashingEmbedder) add(emb []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := sum % uint64(e.dimensions)
	if sum>>63 == 1 {
		weight = -weight
	}
	emb[idx] += weight
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}
