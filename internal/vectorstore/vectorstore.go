// Package vectorstore provides interfaces and implementations for vector and
// full-text retrieval over indexed knowledge-base chunks.
package vectorstore

import (
	"context"
	"time"
)

// SparseVector represents a sparse vector with indices and values
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Chunk represents a document chunk with its embeddings
type Chunk struct {
	ID              string
	KnowledgeBaseID string
	DocumentID      string
	Title           string
	Content         string
	Vector          []float32     // Dense vector from embedding model
	SparseVector    *SparseVector // Sparse vector for lexical search
	Metadata        map[string]string
}

// Hit is a raw retrieval hit as returned by one retriever. Score semantics
// depend on the retriever: cosine similarity for semantic search, lexical
// relevance for full-text search, fused rank score for hybrid search.
type Hit struct {
	ID              string
	KnowledgeBaseID string
	DocumentID      string
	Title           string
	Content         string
	Score           float64
	Metadata        map[string]string
	CreatedAt       time.Time
}

// SemanticRetriever performs dense-vector similarity search
type SemanticRetriever interface {
	SemanticSearch(ctx context.Context, vector []float32, kbIDs []string, limit int, minScore float64) ([]Hit, error)
}

// FulltextRetriever performs lexical search over chunk content
type FulltextRetriever interface {
	FulltextSearch(ctx context.Context, query string, kbIDs []string, limit int, minScore float64) ([]Hit, error)
}

// HybridRetriever performs a natively fused search inside the store. The
// search core prefers this path and falls back to client-side fusion when the
// call errors. Implementations may ignore the blend weights when the store
// only supports rank-based fusion.
type HybridRetriever interface {
	HybridSearch(ctx context.Context, query string, vector []float32, kbIDs []string, semanticWeight, fulltextWeight float64, limit int, minScore float64) ([]Hit, error)
}

// Store is the full vector store surface, including index maintenance used
// by the knowledge-base service.
type Store interface {
	SemanticRetriever
	FulltextRetriever
	HybridRetriever

	// EnsureCollection creates the shared chunk collection if missing
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates chunks
	Upsert(ctx context.Context, chunks []Chunk) error

	// DeleteKnowledgeBase removes all chunks belonging to a knowledge base
	DeleteKnowledgeBase(ctx context.Context, kbID string) error
}
