package service

import (
	"context"
	"errors"
	"testing"

	"github.com/knakagawa/retrieval/internal/repository/memory"
	"github.com/knakagawa/retrieval/internal/reranker"
	"github.com/knakagawa/retrieval/internal/vectorstore"
)

// stubStore fakes all three retriever interfaces and records the thresholds
// it was called with.
type stubStore struct {
	semHits []vectorstore.Hit
	semErr  error
	ftHits  []vectorstore.Hit
	ftErr   error
	hybHits []vectorstore.Hit
	hybErr  error

	semMinScore float64
	ftMinScore  float64
}

func (s *stubStore) SemanticSearch(_ context.Context, _ []float32, _ []string, _ int, minScore float64) ([]vectorstore.Hit, error) {
	s.semMinScore = minScore
	return s.semHits, s.semErr
}

func (s *stubStore) FulltextSearch(_ context.Context, _ string, _ []string, _ int, minScore float64) ([]vectorstore.Hit, error) {
	s.ftMinScore = minScore
	return s.ftHits, s.ftErr
}

func (s *stubStore) HybridSearch(_ context.Context, _ string, _ []float32, _ []string, _, _ float64, _ int, _ float64) ([]vectorstore.Hit, error) {
	return s.hybHits, s.hybErr
}

func newTestSearchService(store *stubStore, opts ...SearchServiceOption) *SearchService {
	emb := &stubEmbedder{vector: []float32{1, 0}}
	selector := NewStrategySelector(nil, 0, nil)
	logs := memory.NewStore(0).SearchLogs()
	return NewSearchService(emb, store, store, selector, logs, opts...)
}

func TestSearchService_ExplicitSemanticStrategy(t *testing.T) {
	store := &stubStore{
		semHits: []vectorstore.Hit{
			{DocumentID: "d1", Title: "one", Content: "first", Score: 0.9},
			{DocumentID: "d2", Title: "two", Content: "second", Score: 0.8},
			{DocumentID: "d3", Title: "three", Content: "third", Score: 0.75},
		},
	}
	svc := newTestSearchService(store)

	resp, err := svc.Search(context.Background(), SearchRequest{
		Query:      "deployment strategies overview",
		Strategy:   StrategySemantic,
		MaxResults: 2,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if resp.StrategyUsed != StrategySemantic {
		t.Errorf("StrategyUsed = %s, want %s", resp.StrategyUsed, StrategySemantic)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results after truncation, got %d", len(resp.Results))
	}
	if resp.Results[0].Title != "one" {
		t.Errorf("first result = %s, want one", resp.Results[0].Title)
	}
	if resp.Results[0].ID == "" {
		t.Error("results should get generated IDs")
	}
	if resp.TotalFound != 2 {
		t.Errorf("TotalFound = %d, want 2", resp.TotalFound)
	}
}

func TestSearchService_RetrievalErrorIsFatal(t *testing.T) {
	store := &stubStore{semErr: errors.New("store unavailable")}
	svc := newTestSearchService(store)

	_, err := svc.Search(context.Background(), SearchRequest{
		Query:    "anything",
		Strategy: StrategySemantic,
	})
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("expected ErrRetrieval, got %v", err)
	}
}

func TestSearchService_UnsupportedStrategy(t *testing.T) {
	svc := newTestSearchService(&stubStore{})

	_, err := svc.Search(context.Background(), SearchRequest{
		Query:    "anything",
		Strategy: "graph",
	})
	if err == nil {
		t.Fatal("expected error for unsupported strategy")
	}
	if errors.Is(err, ErrRetrieval) {
		t.Error("unsupported strategy is a caller error, not a retrieval failure")
	}
}

func TestSearchService_NativeHybridPreferred(t *testing.T) {
	store := &stubStore{
		hybHits: []vectorstore.Hit{
			{DocumentID: "d1", Title: "fused", Content: "native", Score: 0.9},
		},
		semErr: errors.New("legs must not run"),
		ftErr:  errors.New("legs must not run"),
	}
	svc := newTestSearchService(store, WithNativeHybrid(store))

	resp, err := svc.Search(context.Background(), SearchRequest{
		Query:    "configure ingestion pipeline",
		Strategy: StrategyHybrid,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Title != "fused" {
		t.Errorf("expected native hybrid result, got %v", resp.Results)
	}
}

func TestSearchService_HybridFallsBackToFusion(t *testing.T) {
	store := &stubStore{
		hybErr: errors.New("fusion api unsupported"),
		semHits: []vectorstore.Hit{
			{DocumentID: "d1", Content: "shared passage", Score: 0.9},
		},
		ftHits: []vectorstore.Hit{
			{DocumentID: "d1", Content: "shared passage", Score: 0.5},
		},
	}
	svc := newTestSearchService(store, WithNativeHybrid(store))

	resp, err := svc.Search(context.Background(), SearchRequest{
		Query:          "configure ingestion pipeline",
		Strategy:       StrategyHybrid,
		MinScore:       0.7,
		SemanticWeight: 0.7,
		FulltextWeight: 0.3,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 fused result, got %d", len(resp.Results))
	}
	if !almostEqual(resp.Results[0].Score, 0.78) {
		t.Errorf("fused score = %v, want 0.78", resp.Results[0].Score)
	}

	// Each leg retrieves with a relaxed threshold
	if !almostEqual(store.semMinScore, 0.56) || !almostEqual(store.ftMinScore, 0.56) {
		t.Errorf("leg thresholds = %v, %v, want 0.56", store.semMinScore, store.ftMinScore)
	}
}

func TestSearchService_FallbackSourceLabel(t *testing.T) {
	store := &stubStore{
		semHits: []vectorstore.Hit{
			{DocumentID: "d1", KnowledgeBaseID: "1234abcd", Content: "passage", Score: 0.9},
		},
	}
	svc := newTestSearchService(store)

	resp, err := svc.Search(context.Background(), SearchRequest{
		Query:            "anything specific",
		Strategy:         StrategySemantic,
		KnowledgeBaseIDs: []string{"1234abcd"},
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if resp.Results[0].Source != "kb-abcd" {
		t.Errorf("Source = %s, want kb-abcd", resp.Results[0].Source)
	}
}

// errScorer always fails, exercising the uniform-score degradation path
type errScorer struct{}

func (errScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	return nil, errors.New("scorer offline")
}

func TestSearchService_RerankFailurePreservesOrder(t *testing.T) {
	store := &stubStore{
		semHits: []vectorstore.Hit{
			{DocumentID: "d1", Title: "first", Content: "a", Score: 0.9},
			{DocumentID: "d2", Title: "second", Content: "b", Score: 0.8},
		},
	}
	svc := newTestSearchService(store,
		WithReranker(reranker.NewService(errScorer{}, nil)),
	)

	resp, err := svc.Search(context.Background(), SearchRequest{
		Query:        "deployment strategies",
		Strategy:     StrategySemantic,
		UseReranking: true,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if resp.Results[0].Title != "first" || resp.Results[1].Title != "second" {
		t.Errorf("order should survive rerank failure, got %v", resp.Results)
	}
	for i, r := range resp.Results {
		if r.Score != 1.0 {
			t.Errorf("result %d score = %v, want uniform 1.0", i, r.Score)
		}
	}
}

func TestSearchService_LogsCompletedSearches(t *testing.T) {
	mem := memory.NewStore(0)
	store := &stubStore{
		semHits: []vectorstore.Hit{
			{DocumentID: "d1", Content: "passage", Score: 0.9},
		},
	}
	emb := &stubEmbedder{vector: []float32{1, 0}}
	svc := NewSearchService(emb, store, store, NewStrategySelector(nil, 0, nil), mem.SearchLogs())

	_, err := svc.Search(context.Background(), SearchRequest{
		Query:    "audit trail check",
		Strategy: StrategySemantic,
		UserID:   "user-7",
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	logs, err := mem.SearchLogs().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 search log, got %d", len(logs))
	}
	log := logs[0]
	if log.Query != "audit trail check" || log.Strategy != StrategySemantic {
		t.Errorf("log = %+v", log)
	}
	if log.UserID != "user-7" || log.ResultCount != 1 || log.CacheHit {
		t.Errorf("log fields = %+v", log)
	}
}

func TestSearchService_AutoStrategyResolution(t *testing.T) {
	store := &stubStore{
		ftHits: []vectorstore.Hit{
			{DocumentID: "d1", Content: "exact", Score: 0.95},
		},
	}
	svc := newTestSearchService(store)

	// Short quoted query resolves to fulltext
	resp, err := svc.Search(context.Background(), SearchRequest{
		Query:    `"db"`,
		Strategy: StrategyAuto,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if resp.StrategyUsed != StrategyFulltext {
		t.Errorf("StrategyUsed = %s, want %s", resp.StrategyUsed, StrategyFulltext)
	}
}
