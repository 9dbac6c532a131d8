// Package service implements the search orchestration core: strategy
// selection, multi-source result fusion, reranking, and result clustering.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/knakagawa/retrieval/internal/embedder"
	"github.com/knakagawa/retrieval/internal/repository"
	"github.com/knakagawa/retrieval/internal/reranker"
	"github.com/knakagawa/retrieval/internal/vectorstore"
	"golang.org/x/sync/errgroup"
)

// Retrieval strategies
const (
	StrategyAuto     = "auto"
	StrategySemantic = "semantic"
	StrategyFulltext = "fulltext"
	StrategyHybrid   = "hybrid"
)

// ErrRetrieval marks a failed retriever call. It is the only error class the
// orchestrator surfaces to callers; all later pipeline stages degrade instead.
var ErrRetrieval = errors.New("retrieval failed")

// SearchResult is one ranked passage in a search response. The ID is
// generated fresh per result and is not stable across calls. Score semantics
// depend on the pipeline stage that last wrote it.
type SearchResult struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Source     string            `json:"source"`
	DocumentID string            `json:"document_id"`
	Score      float64           `json:"score"`
	Timestamp  time.Time         `json:"timestamp"`
	Cluster    string            `json:"cluster,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ClusterInfo summarizes one result cluster
type ClusterInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SearchRequest holds the parameters for one search call
type SearchRequest struct {
	Query            string   `json:"query"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids"`
	Strategy         string   `json:"strategy"`
	SemanticWeight   float64  `json:"semantic_weight"`
	FulltextWeight   float64  `json:"fulltext_weight"`
	MaxResults       int      `json:"max_results"`
	MinScore         float64  `json:"min_score"`
	UseReranking     bool     `json:"use_reranking"`
	UseClustering    bool     `json:"use_clustering"`
	UserID           string   `json:"user_id,omitempty"`
}

// SearchResponse is the final ranked, optionally clustered result set
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	StrategyUsed string         `json:"strategy_used"`
	TotalFound   int            `json:"total_found"`
	Clusters     []ClusterInfo  `json:"clusters"`
	ResponseTime float64        `json:"response_time"`
}

// SearchDefaults are applied to zero-valued request fields
type SearchDefaults struct {
	MaxResults     int
	MinScore       float64
	SemanticWeight float64
	FulltextWeight float64
}

// SearchService orchestrates retrieval: it resolves the strategy, calls one
// or two retrievers, fuses, reranks, clusters, truncates, and records a
// search log. All state is request-local; a single service instance serves
// concurrent requests.
type SearchService struct {
	embedder  embedder.Embedder
	semantic  vectorstore.SemanticRetriever
	fulltext  vectorstore.FulltextRetriever
	hybrid    vectorstore.HybridRetriever // Optional: native fused search, preferred over client-side fusion
	reranker  *reranker.Service
	selector  *StrategySelector
	clusterer *Clusterer
	kbRepo    repository.KnowledgeBaseRepository // Optional: resolves source labels
	logs      repository.SearchLogRepository
	defaults  SearchDefaults
	logger    *slog.Logger
}

// SearchServiceOption is a functional option for configuring SearchService.
type SearchServiceOption func(*SearchService)

// WithNativeHybrid sets a natively fused retriever preferred over client-side fusion.
func WithNativeHybrid(h vectorstore.HybridRetriever) SearchServiceOption {
	return func(s *SearchService) {
		s.hybrid = h
	}
}

// WithReranker sets the reranking service.
func WithReranker(r *reranker.Service) SearchServiceOption {
	return func(s *SearchService) {
		s.reranker = r
	}
}

// WithClusterer sets the clustering engine.
func WithClusterer(c *Clusterer) SearchServiceOption {
	return func(s *SearchService) {
		s.clusterer = c
	}
}

// WithKnowledgeBases sets the repository used to resolve source labels.
func WithKnowledgeBases(repo repository.KnowledgeBaseRepository) SearchServiceOption {
	return func(s *SearchService) {
		s.kbRepo = repo
	}
}

// WithSearchDefaults overrides the defaults applied to zero-valued request fields.
func WithSearchDefaults(d SearchDefaults) SearchServiceOption {
	return func(s *SearchService) {
		s.defaults = d
	}
}

// WithSearchLogger sets the logger.
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService creates a new search service
func NewSearchService(
	emb embedder.Embedder,
	semantic vectorstore.SemanticRetriever,
	fulltext vectorstore.FulltextRetriever,
	selector *StrategySelector,
	logs repository.SearchLogRepository,
	opts ...SearchServiceOption,
) *SearchService {
	s := &SearchService{
		embedder: emb,
		semantic: semantic,
		fulltext: fulltext,
		selector: selector,
		logs:     logs,
		defaults: SearchDefaults{
			MaxResults:     10,
			MinScore:       0.7,
			SemanticWeight: 0.7,
			FulltextWeight: 0.3,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Search runs the full retrieval pipeline for one request
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()
	s.applyDefaults(&req)

	// Resolve strategy
	strategy := req.Strategy
	if strategy == "" || strategy == StrategyAuto {
		strategy = s.selector.Select(ctx, req.Query)
		s.logger.Info("auto selected strategy", "strategy", strategy, "query", req.Query)
	}

	// Retrieve with overfetch so dedup, reranking, and clustering have room
	fetchLimit := req.MaxResults * 2

	var results []SearchResult
	var err error
	switch strategy {
	case StrategySemantic:
		results, err = s.semanticSearch(ctx, req.Query, req.KnowledgeBaseIDs, fetchLimit, req.MinScore)
	case StrategyFulltext:
		results, err = s.fulltextSearch(ctx, req.Query, req.KnowledgeBaseIDs, fetchLimit, req.MinScore)
	case StrategyHybrid:
		results, err = s.hybridSearch(ctx, req, fetchLimit)
	default:
		return nil, fmt.Errorf("unsupported search strategy: %q", strategy)
	}
	if err != nil {
		return nil, err
	}

	// Rerank
	if req.UseReranking && len(results) > 1 && s.reranker != nil {
		results = s.rerankResults(ctx, req.Query, results)
	}

	// Cluster
	var clusters []ClusterInfo
	if req.UseClustering && len(results) > 1 && s.clusterer != nil {
		results, clusters = s.clusterer.Cluster(ctx, results)
	}

	// Truncate only after fusion, reranking, and clustering are done
	if len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}

	responseTime := time.Since(startTime)
	s.logSearch(ctx, req, strategy, responseTime, len(results))

	s.logger.Info("search completed",
		"strategy", strategy,
		"results", len(results),
		"duration", responseTime,
	)

	return &SearchResponse{
		Query:        req.Query,
		Results:      results,
		StrategyUsed: strategy,
		TotalFound:   len(results),
		Clusters:     clusters,
		ResponseTime: responseTime.Seconds(),
	}, nil
}

func (s *SearchService) applyDefaults(req *SearchRequest) {
	if req.MaxResults <= 0 {
		req.MaxResults = s.defaults.MaxResults
	}
	if req.MinScore <= 0 {
		req.MinScore = s.defaults.MinScore
	}
	if req.SemanticWeight == 0 && req.FulltextWeight == 0 {
		req.SemanticWeight = s.defaults.SemanticWeight
		req.FulltextWeight = s.defaults.FulltextWeight
	}
}

// semanticSearch embeds the query and runs dense-vector retrieval
func (s *SearchService) semanticSearch(ctx context.Context, query string, kbIDs []string, limit int, minScore float64) ([]SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}

	hits, err := s.semantic.SemanticSearch(ctx, vector, kbIDs, limit, minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: semantic search: %v", ErrRetrieval, err)
	}
	return s.toResults(ctx, hits, kbIDs), nil
}

// fulltextSearch runs lexical retrieval
func (s *SearchService) fulltextSearch(ctx context.Context, query string, kbIDs []string, limit int, minScore float64) ([]SearchResult, error) {
	hits, err := s.fulltext.FulltextSearch(ctx, query, kbIDs, limit, minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: fulltext search: %v", ErrRetrieval, err)
	}
	return s.toResults(ctx, hits, kbIDs), nil
}

// hybridSearch prefers the store's native fused search and falls back to
// client-side fusion of both retrievers when the native path is missing or
// errors. The fallback failure of either leg is fatal for the request.
func (s *SearchService) hybridSearch(ctx context.Context, req SearchRequest, limit int) ([]SearchResult, error) {
	if s.hybrid != nil {
		vector, err := s.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
		}

		hits, err := s.hybrid.HybridSearch(ctx, req.Query, vector, req.KnowledgeBaseIDs,
			req.SemanticWeight, req.FulltextWeight, limit, req.MinScore)
		if err == nil {
			return s.toResults(ctx, hits, req.KnowledgeBaseIDs), nil
		}
		s.logger.Warn("native hybrid search failed, falling back to client-side fusion", "error", err)
	}
	return s.legacyHybridSearch(ctx, req, limit)
}

// legacyHybridSearch runs both retrievers concurrently and fuses the results.
// Each leg retrieves with a relaxed threshold; the fused combined score is
// filtered against the request minimum.
func (s *SearchService) legacyHybridSearch(ctx context.Context, req SearchRequest, limit int) ([]SearchResult, error) {
	legMinScore := req.MinScore * 0.8

	var semanticResults, fulltextResults []SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semanticResults, err = s.semanticSearch(gctx, req.Query, req.KnowledgeBaseIDs, limit, legMinScore)
		return err
	})
	g.Go(func() error {
		var err error
		fulltextResults, err = s.fulltextSearch(gctx, req.Query, req.KnowledgeBaseIDs, limit, legMinScore)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuseResults(semanticResults, fulltextResults, req.SemanticWeight, req.FulltextWeight, req.MinScore), nil
}

// rerankResults overwrites scores with second-pass relevance and re-sorts.
// The reranking service never fails; at worst scores are uniform and the
// stable sort preserves the existing order.
func (s *SearchService) rerankResults(ctx context.Context, query string, results []SearchResult) []SearchResult {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}

	scores := s.reranker.Rerank(ctx, query, texts)
	for i := range results {
		results[i].Score = scores[i]
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// toResults converts raw hits into response results with fresh IDs and
// resolved source labels
func (s *SearchService) toResults(ctx context.Context, hits []vectorstore.Hit, kbIDs []string) []SearchResult {
	sources := s.resolveSources(ctx, kbIDs)

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		source, ok := sources[hit.KnowledgeBaseID]
		if !ok {
			source = fallbackSourceLabel(hit.KnowledgeBaseID)
		}
		results[i] = SearchResult{
			ID:         uuid.NewString(),
			Title:      hit.Title,
			Content:    hit.Content,
			Source:     source,
			DocumentID: hit.DocumentID,
			Score:      hit.Score,
			Timestamp:  hit.CreatedAt,
			Metadata:   hit.Metadata,
		}
	}
	return results
}

// resolveSources maps knowledge-base IDs to display names. Lookup failures
// degrade to a derived label; they never fail the request.
func (s *SearchService) resolveSources(ctx context.Context, kbIDs []string) map[string]string {
	sources := make(map[string]string, len(kbIDs))
	if s.kbRepo == nil {
		return sources
	}
	for _, id := range kbIDs {
		kbID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		kb, err := s.kbRepo.GetByID(ctx, kbID)
		if err != nil {
			continue
		}
		sources[id] = kb.Name
	}
	return sources
}

func fallbackSourceLabel(kbID string) string {
	if len(kbID) > 4 {
		return "kb-" + kbID[len(kbID)-4:]
	}
	return "kb-" + kbID
}

// logSearch records the completed request; failures are logged and swallowed
func (s *SearchService) logSearch(ctx context.Context, req SearchRequest, strategy string, responseTime time.Duration, resultCount int) {
	if s.logs == nil {
		return
	}
	err := s.logs.Insert(ctx, &repository.SearchLog{
		ID:               uuid.New(),
		UserID:           req.UserID,
		Query:            req.Query,
		Strategy:         strategy,
		ResponseTime:     responseTime,
		KnowledgeBaseIDs: req.KnowledgeBaseIDs,
		ResultCount:      resultCount,
		CacheHit:         false,
		Timestamp:        time.Now(),
	})
	if err != nil {
		s.logger.Warn("failed to record search log", "error", err)
	}
}
