package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/knakagawa/retrieval/internal/repository"
)

// Defaults for strategy selection
const (
	// DefaultHybridMargin is the score margin under which a non-hybrid
	// winner is overridden to hybrid.
	DefaultHybridMargin = 0.1

	// DefaultHistoryWindow is how many recent search logs the history
	// scorer inspects.
	DefaultHistoryWindow = 100

	// similarQueryLimit caps how many similar past queries contribute.
	similarQueryLimit = 5

	// similarityThreshold is the minimum token overlap for a past query
	// to count as similar.
	similarityThreshold = 0.3
)

// StrategyScores maps strategy name to a heuristic score. Scores are
// ephemeral and only comparable within one selection pass.
type StrategyScores map[string]float64

// strategies in evaluation order; ties resolve to the earliest entry
var strategies = []string{StrategySemantic, StrategyFulltext, StrategyHybrid}

// featureRule is one independent signal extracted from the raw query text.
// Rules are evaluated in isolation and their scores summed.
type featureRule struct {
	name  string
	apply func(q queryText) StrategyScores
}

// queryText carries the precomputed views of the query the rules share
type queryText struct {
	raw    string
	lower  string
	runes  int
	tokens int
}

var (
	definitionTerms = []string{
		"定义", "是什么", "概念", "解释", "含义",
		"definition", "what is", "meaning",
	}
	proceduralTerms = []string{
		"如何", "怎么", "方法", "步骤", "流程", "教程",
		"how to", "steps", "tutorial",
	}
	comparisonTerms = []string{
		"比较", "区别", "差异", "优缺点", "vs", "versus",
		"compare", "difference",
	}
	openEndedTerms = []string{
		"为什么", "原因", "影响", "作用", "意义",
		"why", "reason", "impact",
	}
)

const specialChars = ":/+-&|!()*"

var featureRules = []featureRule{
	{
		name: "length",
		apply: func(q queryText) StrategyScores {
			switch {
			case q.runes < 5:
				return StrategyScores{StrategyFulltext: 0.4}
			case q.runes <= 10:
				return StrategyScores{StrategyHybrid: 0.2}
			default:
				return StrategyScores{StrategySemantic: 0.3}
			}
		},
	},
	{
		name: "quotes",
		apply: func(q queryText) StrategyScores {
			// Quote characters signal exact-match intent
			if strings.ContainsAny(q.raw, `"'`) {
				return StrategyScores{StrategyFulltext: 0.5}
			}
			return nil
		},
	},
	{
		name: "special_chars",
		apply: func(q queryText) StrategyScores {
			if strings.ContainsAny(q.raw, specialChars) {
				return StrategyScores{StrategyFulltext: 0.3}
			}
			return nil
		},
	},
	{
		name: "definition_terms",
		apply: func(q queryText) StrategyScores {
			if containsAnyTerm(q.lower, definitionTerms) {
				return StrategyScores{StrategyFulltext: 0.4}
			}
			return nil
		},
	},
	{
		name: "procedural_terms",
		apply: func(q queryText) StrategyScores {
			if containsAnyTerm(q.lower, proceduralTerms) {
				return StrategyScores{StrategyFulltext: 0.3, StrategyHybrid: 0.1}
			}
			return nil
		},
	},
	{
		name: "comparison_terms",
		apply: func(q queryText) StrategyScores {
			if containsAnyTerm(q.lower, comparisonTerms) {
				return StrategyScores{StrategySemantic: 0.3, StrategyHybrid: 0.2}
			}
			return nil
		},
	},
	{
		name: "open_ended_terms",
		apply: func(q queryText) StrategyScores {
			if containsAnyTerm(q.lower, openEndedTerms) {
				return StrategyScores{StrategySemantic: 0.4}
			}
			return nil
		},
	},
	{
		name: "token_count",
		apply: func(q queryText) StrategyScores {
			if q.tokens > 7 {
				return StrategyScores{StrategySemantic: 0.2}
			}
			return nil
		},
	},
}

func containsAnyTerm(lower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// analyzeQueryFeatures scores each strategy from heuristic signals on the
// raw query text. Hybrid starts with a base score; every rule adds on top.
func analyzeQueryFeatures(query string) StrategyScores {
	scores := StrategyScores{
		StrategySemantic: 0.0,
		StrategyFulltext: 0.0,
		StrategyHybrid:   0.5,
	}

	q := queryText{
		raw:    query,
		lower:  strings.ToLower(query),
		runes:  utf8.RuneCountInString(query),
		tokens: len(strings.Fields(query)),
	}

	for _, rule := range featureRules {
		for strategy, score := range rule.apply(q) {
			scores[strategy] += score
		}
	}
	return scores
}

// HistoryScorer scores strategies from how they performed on similar past
// queries. It reads a snapshot of the append-only search log; any error
// degrades to zero scores.
type HistoryScorer struct {
	logs   repository.SearchLogRepository
	window int
}

// NewHistoryScorer creates a history scorer reading up to window recent logs.
func NewHistoryScorer(logs repository.SearchLogRepository, window int) *HistoryScorer {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &HistoryScorer{logs: logs, window: window}
}

// Scores computes per-strategy performance scores for the query
func (h *HistoryScorer) Scores(ctx context.Context, query string) StrategyScores {
	scores := StrategyScores{
		StrategySemantic: 0.0,
		StrategyFulltext: 0.0,
		StrategyHybrid:   0.0,
	}
	if h == nil || h.logs == nil {
		return scores
	}

	similar, err := h.findSimilarQueries(ctx, query)
	if err != nil || len(similar) == 0 {
		return scores
	}

	for _, strategy := range strategies {
		var totalSeconds float64
		var totalResults int
		count := 0
		for _, log := range similar {
			if log.Strategy != strategy {
				continue
			}
			totalSeconds += log.ResponseTime.Seconds()
			totalResults += log.ResultCount
			count++
		}
		if count == 0 {
			continue
		}

		avgResponseTime := totalSeconds / float64(count)
		timeScore := 1.0 / (1.0 + avgResponseTime)

		avgResultCount := float64(totalResults) / float64(count)
		resultCountScore := 0.0
		if avgResultCount >= 1 && avgResultCount <= 20 {
			resultCountScore = 0.3
		}

		scores[strategy] = timeScore*0.7 + resultCountScore*0.3
	}
	return scores
}

// findSimilarQueries returns up to similarQueryLimit past logs whose token
// overlap with the query exceeds the similarity threshold, most similar first
func (h *HistoryScorer) findSimilarQueries(ctx context.Context, query string) ([]*repository.SearchLog, error) {
	recent, err := h.logs.Recent(ctx, h.window)
	if err != nil {
		return nil, err
	}

	tokens := tokenSet(query)

	type scored struct {
		log        *repository.SearchLog
		similarity float64
	}
	var similar []scored
	for _, log := range recent {
		overlap := jaccardOverlap(tokens, tokenSet(log.Query))
		if overlap > similarityThreshold {
			similar = append(similar, scored{log: log, similarity: overlap})
		}
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].similarity > similar[j].similarity
	})
	if len(similar) > similarQueryLimit {
		similar = similar[:similarQueryLimit]
	}

	logs := make([]*repository.SearchLog, len(similar))
	for i, sc := range similar {
		logs[i] = sc.log
	}
	return logs, nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccardOverlap computes |a∩b| / |a∪b| for two token sets
func jaccardOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// StrategySelector picks a retrieval strategy for a query by combining query
// features with historical performance.
type StrategySelector struct {
	history *HistoryScorer
	margin  float64
	logger  *slog.Logger
}

// NewStrategySelector creates a selector. history may be nil (feature-only
// selection). margin <= 0 uses the default hybrid-override margin.
func NewStrategySelector(history *HistoryScorer, margin float64, logger *slog.Logger) *StrategySelector {
	if margin <= 0 {
		margin = DefaultHybridMargin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StrategySelector{history: history, margin: margin, logger: logger}
}

// Select picks the best strategy for the query. Feature scores weigh 0.7,
// history scores 0.3. When the winner is not hybrid and beats hybrid by less
// than the margin, the safer blended strategy wins instead.
func (s *StrategySelector) Select(ctx context.Context, query string) string {
	feature := analyzeQueryFeatures(query)
	history := s.history.Scores(ctx, query)

	final := make(StrategyScores, len(strategies))
	for _, strategy := range strategies {
		final[strategy] = feature[strategy]*0.7 + history[strategy]*0.3
	}

	best := strategies[0]
	for _, strategy := range strategies[1:] {
		if final[strategy] > final[best] {
			best = strategy
		}
	}

	if best != StrategyHybrid && final[best]-final[StrategyHybrid] < s.margin {
		best = StrategyHybrid
	}

	s.logger.Debug("strategy selection",
		"query", query,
		"strategy", best,
		"feature_scores", feature,
		"history_scores", history,
	)
	return best
}
