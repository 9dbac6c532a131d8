package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/knakagawa/retrieval/internal/repository"
)

// PerformanceMetrics aggregates search performance over a time range
type PerformanceMetrics struct {
	TotalSearches        int     `json:"total_searches"`
	AvgResponseTimeMS    float64 `json:"avg_response_time"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
	PositiveFeedbackRate float64 `json:"positive_feedback_rate"`
	TimeRange            string  `json:"time_range"`
}

// StrategyUsage is one strategy's share of searches
type StrategyUsage struct {
	Strategy   string  `json:"strategy"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// QueryCount is one query's occurrence count
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// AnalyticsService records search and feedback events and computes usage
// statistics over them.
type AnalyticsService struct {
	searchLogs repository.SearchLogRepository
	feedback   repository.FeedbackRepository
	logger     *slog.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(searchLogs repository.SearchLogRepository, feedback repository.FeedbackRepository, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{searchLogs: searchLogs, feedback: feedback, logger: logger}
}

// LogSearch records one completed search. Errors are logged, never surfaced:
// analytics must not fail requests.
func (s *AnalyticsService) LogSearch(ctx context.Context, log *repository.SearchLog) {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	if err := s.searchLogs.Insert(ctx, log); err != nil {
		s.logger.Warn("failed to record search log", "error", err)
	}
}

// LogFeedback records user feedback linked to a prior search
func (s *AnalyticsService) LogFeedback(ctx context.Context, fb *repository.FeedbackLog) error {
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}
	if err := s.feedback.Insert(ctx, fb); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil
}

// PerformanceMetrics computes aggregate metrics for the given time range
// ("day", "week", or "month")
func (s *AnalyticsService) PerformanceMetrics(ctx context.Context, timeRange string) (*PerformanceMetrics, error) {
	start := startOfRange(timeRange)

	logs, err := s.searchLogs.Since(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load search logs: %w", err)
	}

	metrics := &PerformanceMetrics{
		TotalSearches: len(logs),
		TimeRange:     timeRange,
	}
	if len(logs) > 0 {
		var totalMS float64
		hits := 0
		for _, log := range logs {
			totalMS += float64(log.ResponseTime.Milliseconds())
			if log.CacheHit {
				hits++
			}
		}
		metrics.AvgResponseTimeMS = totalMS / float64(len(logs))
		metrics.CacheHitRate = float64(hits) / float64(len(logs)) * 100
	}

	feedback, err := s.feedback.Since(ctx, start)
	if err != nil {
		// Feedback store being down degrades the metric, not the endpoint
		s.logger.Warn("failed to load feedback logs", "error", err)
		return metrics, nil
	}
	if len(feedback) > 0 {
		positive := 0
		for _, fb := range feedback {
			if fb.Type == "positive" {
				positive++
			}
		}
		metrics.PositiveFeedbackRate = float64(positive) / float64(len(feedback)) * 100
	}

	return metrics, nil
}

// StrategyDistribution computes how often each strategy was used
func (s *AnalyticsService) StrategyDistribution(ctx context.Context, timeRange string) ([]StrategyUsage, error) {
	logs, err := s.searchLogs.Since(ctx, startOfRange(timeRange))
	if err != nil {
		return nil, fmt.Errorf("failed to load search logs: %w", err)
	}

	counts := make(map[string]int)
	for _, log := range logs {
		counts[log.Strategy]++
	}

	usage := make([]StrategyUsage, 0, len(counts))
	for _, strategy := range strategies {
		count, ok := counts[strategy]
		if !ok {
			continue
		}
		usage = append(usage, StrategyUsage{
			Strategy:   strategy,
			Count:      count,
			Percentage: float64(count) / float64(len(logs)) * 100,
		})
	}
	return usage, nil
}

// TopQueries returns the most frequent queries in the time range
func (s *AnalyticsService) TopQueries(ctx context.Context, timeRange string, limit int) ([]QueryCount, error) {
	if limit <= 0 {
		limit = 10
	}

	logs, err := s.searchLogs.Since(ctx, startOfRange(timeRange))
	if err != nil {
		return nil, fmt.Errorf("failed to load search logs: %w", err)
	}

	counts := make(map[string]int)
	for _, log := range logs {
		counts[log.Query]++
	}

	queries := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		queries = append(queries, QueryCount{Query: query, Count: count})
	}
	sort.Slice(queries, func(i, j int) bool {
		if queries[i].Count != queries[j].Count {
			return queries[i].Count > queries[j].Count
		}
		return queries[i].Query < queries[j].Query
	})
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return queries, nil
}

func startOfRange(timeRange string) time.Time {
	now := time.Now()
	switch timeRange {
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	default: // day
		return now.AddDate(0, 0, -1)
	}
}
