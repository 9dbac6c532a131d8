package reranker

import (
	"context"
	"fmt"
	"math"

	"github.com/knakagawa/retrieval/internal/embedder"
)

// EmbeddingScorer scores texts by cosine similarity between the query
// embedding and each text embedding, clamped to [0,1]. Batch embedding
// concurrency is governed by the embedder itself.
type EmbeddingScorer struct {
	embedder embedder.Embedder
}

// NewEmbeddingScorer creates a scorer backed by the given embedder.
func NewEmbeddingScorer(e embedder.Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: e}
}

// Score computes per-text relevance scores for the query.
func (s *EmbeddingScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	textVecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}

	scores := make([]float64, len(texts))
	for i, vec := range textVecs {
		sim := CosineSimilarity(queryVec, vec)
		scores[i] = math.Max(0, math.Min(1, sim))
	}
	return scores, nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when either vector is empty or zero-length.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Scorer = (*EmbeddingScorer)(nil)
