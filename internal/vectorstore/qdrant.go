package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

const (
	// CollectionName is the shared collection holding all knowledge-base chunks
	CollectionName = "kb_chunks"

	// Vector field names for hybrid collections
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// QdrantStore implements Store using Qdrant
type QdrantStore struct {
	client *qdrant.Client
	sparse *SparseEncoder
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(ctx context.Context, url string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, sparse: NewSparseEncoder()}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the shared chunk collection if it does not exist.
// The collection carries a named dense vector (cosine) and a named sparse
// vector scored with IDF inside the store.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {
				Modifier: qdrant.Modifier_Idf.Enum(),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert inserts or updates chunks in the collection
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]*qdrant.Value{
			"knowledge_base_id": qdrant.NewValueString(chunk.KnowledgeBaseID),
			"document_id":       qdrant.NewValueString(chunk.DocumentID),
			"title":             qdrant.NewValueString(chunk.Title),
			"content":           qdrant.NewValueString(chunk.Content),
			"created_at":        qdrant.NewValueString(time.Now().UTC().Format(time.RFC3339)),
		}
		for k, v := range chunk.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}

		sparse := chunk.SparseVector
		if sparse == nil {
			sparse = s.sparse.Encode(chunk.Content)
		}

		vectors := map[string]*qdrant.Vector{
			denseVectorName: {Data: chunk.Vector},
		}
		if sparse != nil {
			vectors[sparseVectorName] = &qdrant.Vector{
				Indices: &qdrant.SparseIndices{Data: sparse.Indices},
				Data:    sparse.Values,
			}
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunk.ID),
			Payload: payload,
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vectors{
					Vectors: &qdrant.NamedVectors{Vectors: vectors},
				},
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: CollectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// DeleteKnowledgeBase removes all chunks belonging to a knowledge base
func (s *QdrantStore) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("knowledge_base_id", kbID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete knowledge base chunks: %w", err)
	}
	return nil
}

// kbFilter builds a filter matching any of the given knowledge base IDs.
// Returns nil when no IDs are given (search everything).
func kbFilter(kbIDs []string) *qdrant.Filter {
	if len(kbIDs) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, len(kbIDs))
	for i, id := range kbIDs {
		conditions[i] = qdrant.NewMatch("knowledge_base_id", id)
	}
	return &qdrant.Filter{Should: conditions}
}

// SemanticSearch performs dense-vector similarity search
func (s *QdrantStore) SemanticSearch(ctx context.Context, vector []float32, kbIDs []string, limit int, minScore float64) ([]Hit, error) {
	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQueryDense(vector),
		Using:          qdrant.PtrOf(denseVectorName),
		Filter:         kbFilter(kbIDs),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return s.toHits(response, 0), nil
}

// FulltextSearch performs lexical search using the sparse vector index.
// The query is encoded into hashed term frequencies; scoring happens in the
// store against IDF-weighted indexed terms.
func (s *QdrantStore) FulltextSearch(ctx context.Context, query string, kbIDs []string, limit int, minScore float64) ([]Hit, error) {
	sparse := s.sparse.Encode(query)
	if sparse == nil {
		return nil, nil
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
		Using:          qdrant.PtrOf(sparseVectorName),
		Filter:         kbFilter(kbIDs),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fulltext search: %w", err)
	}
	return s.toHits(response, minScore), nil
}

// HybridSearch performs a natively fused search with dense and sparse
// prefetch legs combined by RRF inside the store. The blend weights are
// accepted for interface compatibility; RRF is rank-based and does not use
// them.
func (s *QdrantStore) HybridSearch(ctx context.Context, query string, vector []float32, kbIDs []string, _, _ float64, limit int, minScore float64) ([]Hit, error) {
	prefetchLimit := uint64(limit * 2)

	prefetch := []*qdrant.PrefetchQuery{
		{
			Query:  qdrant.NewQueryDense(vector),
			Using:  qdrant.PtrOf(denseVectorName),
			Filter: kbFilter(kbIDs),
			Limit:  qdrant.PtrOf(prefetchLimit),
		},
	}
	if sparse := s.sparse.Encode(query); sparse != nil {
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query:  qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
			Using:  qdrant.PtrOf(sparseVectorName),
			Filter: kbFilter(kbIDs),
			Limit:  qdrant.PtrOf(prefetchLimit),
		})
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hybrid search: %w", err)
	}
	return s.toHits(response, minScore), nil
}

// toHits converts scored points to hits, dropping those below minScore
func (s *QdrantStore) toHits(points []*qdrant.ScoredPoint, minScore float64) []Hit {
	hits := make([]Hit, 0, len(points))
	for _, point := range points {
		if float64(point.Score) < minScore {
			continue
		}

		hit := Hit{
			ID:       point.Id.GetUuid(),
			Score:    float64(point.Score),
			Metadata: make(map[string]string),
		}

		for k, v := range point.Payload {
			switch k {
			case "knowledge_base_id":
				hit.KnowledgeBaseID = v.GetStringValue()
			case "document_id":
				hit.DocumentID = v.GetStringValue()
			case "title":
				hit.Title = v.GetStringValue()
			case "content":
				hit.Content = v.GetStringValue()
			case "created_at":
				if ts, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
					hit.CreatedAt = ts
				}
			default:
				hit.Metadata[k] = v.GetStringValue()
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

// Ensure QdrantStore implements Store
var _ Store = (*QdrantStore)(nil)
