// Package reranker provides second-pass relevance scoring for retrieval
// results.
//
// A Scorer rates each candidate text against the query on a 0-1 scale. The
// Service wraps a Scorer with the degradation contract the search pipeline
// relies on: when the scorer is missing or errors, every text receives a
// uniform score of 1.0 so the pre-rerank ordering survives the re-sort.
package reranker

import (
	"context"
	"log/slog"
	"sync"
)

// Scorer rates candidate texts against a query. Scores are in [0,1] and the
// returned slice has the same length and order as texts.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Service wraps a Scorer with fallback behavior. A nil Scorer is valid and
// always yields uniform scores.
type Service struct {
	scorer Scorer
	logger *slog.Logger
}

// NewService creates a reranking service around the given scorer.
func NewService(scorer Scorer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{scorer: scorer, logger: logger}
}

// Rerank scores texts against the query. Scorer errors degrade to uniform
// 1.0 scores instead of failing the request.
func (s *Service) Rerank(ctx context.Context, query string, texts []string) []float64 {
	if s.scorer == nil {
		return uniformScores(len(texts))
	}

	scores, err := s.scorer.Score(ctx, query, texts)
	if err != nil || len(scores) != len(texts) {
		s.logger.Warn("reranking unavailable, using uniform scores",
			"error", err,
			"texts", len(texts),
		)
		return uniformScores(len(texts))
	}
	return scores
}

// BatchRerank scores independent (query, texts) pairs concurrently. A failure
// in one pair degrades only that pair to uniform scores; the others are
// unaffected.
func (s *Service) BatchRerank(ctx context.Context, queries []string, textsList [][]string) [][]float64 {
	results := make([][]float64, len(queries))

	paired := min(len(queries), len(textsList))
	if paired < len(queries) {
		s.logger.Warn("batch rerank received fewer text lists than queries",
			"queries", len(queries),
			"textsLists", len(textsList),
		)
	}

	var wg sync.WaitGroup
	for i := 0; i < paired; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = s.Rerank(ctx, queries[idx], textsList[idx])
		}(i)
	}
	wg.Wait()

	// Queries without a matching text list degrade like any other failed pair.
	for i := paired; i < len(queries); i++ {
		results[i] = uniformScores(0)
	}
	return results
}

func uniformScores(n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0
	}
	return scores
}
