package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/knakagawa/retrieval/internal/repository"
	"github.com/knakagawa/retrieval/internal/repository/memory"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalyzeQueryFeatures(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  StrategyScores
	}{
		{
			name:  "short query favors fulltext",
			query: "api",
			want:  StrategyScores{StrategySemantic: 0, StrategyFulltext: 0.4, StrategyHybrid: 0.5},
		},
		{
			name:  "quoted phrase signals exact match",
			query: `"exact phrase here"`,
			want:  StrategyScores{StrategySemantic: 0.3, StrategyFulltext: 0.5, StrategyHybrid: 0.5},
		},
		{
			name:  "url-like query gets special char boost",
			query: "http://example.com/docs",
			want:  StrategyScores{StrategySemantic: 0.3, StrategyFulltext: 0.3, StrategyHybrid: 0.5},
		},
		{
			name:  "chinese procedural query",
			query: "如何配置知识库",
			want:  StrategyScores{StrategySemantic: 0, StrategyFulltext: 0.3, StrategyHybrid: 0.8},
		},
		{
			name:  "chinese definition query",
			query: "向量数据库是什么",
			want:  StrategyScores{StrategySemantic: 0, StrategyFulltext: 0.4, StrategyHybrid: 0.7},
		},
		{
			name:  "long open-ended query favors semantic",
			query: "why do teams choose microservices over monolith architectures for scaling",
			want:  StrategyScores{StrategySemantic: 0.9, StrategyFulltext: 0, StrategyHybrid: 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeQueryFeatures(tt.query)
			for _, strategy := range strategies {
				if !almostEqual(got[strategy], tt.want[strategy]) {
					t.Errorf("query %q: %s score = %v, want %v", tt.query, strategy, got[strategy], tt.want[strategy])
				}
			}
		})
	}
}

func TestStrategySelector_Select(t *testing.T) {
	selector := NewStrategySelector(nil, 0, nil)
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		// fulltext 0.9*0.7=0.63 vs hybrid 0.5*0.7=0.35, margin 0.28
		{`"db"`, StrategyFulltext},
		// semantic 0.9*0.7=0.63 vs hybrid 0.35
		{"why do teams choose microservices over monolith architectures for scaling", StrategySemantic},
		// hybrid wins outright at 0.8*0.7=0.56
		{"如何配置知识库", StrategyHybrid},
		// fulltext 0.4*0.7=0.28 loses to hybrid 0.35
		{"api", StrategyHybrid},
	}

	for _, tt := range tests {
		if got := selector.Select(ctx, tt.query); got != tt.want {
			t.Errorf("Select(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}
}

func TestStrategySelector_HybridMarginOverride(t *testing.T) {
	ctx := context.Background()

	// Feature scores for "a:b": fulltext 0.7 (short + special chars),
	// hybrid 0.5. Without history fulltext wins by 0.14, over the margin.
	selector := NewStrategySelector(nil, 0.1, nil)
	if got := selector.Select(ctx, "a:b"); got != StrategyFulltext {
		t.Fatalf("without history: Select = %s, want %s", got, StrategyFulltext)
	}

	// Hybrid performing well on the same query narrows the gap under the
	// margin: perf = 0.7/(1+2) + 0.3*0.3 ≈ 0.323, so hybrid climbs to
	// 0.35 + 0.3*0.323 ≈ 0.447 against fulltext's 0.49.
	store := memory.NewStore(0)
	insertLog(t, store.SearchLogs(), "a:b", StrategyHybrid, 2*time.Second, 5)
	history := NewHistoryScorer(store.SearchLogs(), 0)
	selector = NewStrategySelector(history, 0.1, nil)

	if got := selector.Select(ctx, "a:b"); got != StrategyHybrid {
		t.Errorf("with history: Select = %s, want %s", got, StrategyHybrid)
	}
}

func insertLog(t *testing.T, logs repository.SearchLogRepository, query, strategy string, rt time.Duration, results int) {
	t.Helper()
	err := logs.Insert(context.Background(), &repository.SearchLog{
		ID:           uuid.New(),
		Query:        query,
		Strategy:     strategy,
		ResponseTime: rt,
		ResultCount:  results,
		Timestamp:    time.Now(),
	})
	if err != nil {
		t.Fatalf("inserting log: %v", err)
	}
}

func TestHistoryScorer_Scores(t *testing.T) {
	store := memory.NewStore(0)
	logs := store.SearchLogs()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		insertLog(t, logs, "kubernetes pod scheduling", StrategySemantic, time.Second, 5)
	}

	scorer := NewHistoryScorer(logs, 0)
	scores := scorer.Scores(ctx, "kubernetes pod scheduling")

	// time score 1/(1+1) = 0.5, result count in [1,20] adds 0.3,
	// combined 0.5*0.7 + 0.3*0.3 = 0.44
	if !almostEqual(scores[StrategySemantic], 0.44) {
		t.Errorf("semantic score = %v, want 0.44", scores[StrategySemantic])
	}
	if scores[StrategyFulltext] != 0 || scores[StrategyHybrid] != 0 {
		t.Errorf("strategies without history should score 0, got %v", scores)
	}
}

func TestHistoryScorer_IgnoresDissimilarQueries(t *testing.T) {
	store := memory.NewStore(0)
	logs := store.SearchLogs()

	insertLog(t, logs, "completely unrelated terms entirely", StrategyFulltext, time.Second, 5)

	scorer := NewHistoryScorer(logs, 0)
	scores := scorer.Scores(context.Background(), "kubernetes pod scheduling")

	for _, strategy := range strategies {
		if scores[strategy] != 0 {
			t.Errorf("%s score = %v, want 0", strategy, scores[strategy])
		}
	}
}

func TestHistoryScorer_NilRepository(t *testing.T) {
	var scorer *HistoryScorer
	scores := scorer.Scores(context.Background(), "anything")
	for _, strategy := range strategies {
		if scores[strategy] != 0 {
			t.Errorf("nil scorer should yield zero scores, got %v", scores)
		}
	}
}

func TestJaccardOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"a b c", "a b c", 1.0},
		{"a b", "c d", 0.0},
		{"a b c", "b c d", 0.5},
		{"", "a", 0.0},
	}

	for _, tt := range tests {
		got := jaccardOverlap(tokenSet(tt.a), tokenSet(tt.b))
		if !almostEqual(got, tt.want) {
			t.Errorf("jaccardOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
