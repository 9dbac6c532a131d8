package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/knakagawa/retrieval/internal/repository"
)

// SearchLogRepo implements repository.SearchLogRepository
type SearchLogRepo struct {
	db *DB
}

// NewSearchLogRepo creates a new search log repository
func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

// Insert records a completed search
func (r *SearchLogRepo) Insert(ctx context.Context, log *repository.SearchLog) error {
	kbIDs, err := json.Marshal(log.KnowledgeBaseIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base ids: %w", err)
	}

	query := `
		INSERT INTO search_logs (id, user_id, query, strategy, response_time_ms, knowledge_base_ids, result_count, cache_hit, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		log.ID, log.UserID, log.Query, log.Strategy, log.ResponseTime.Milliseconds(),
		kbIDs, log.ResultCount, log.CacheHit, log.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert search log: %w", err)
	}
	return nil
}

// Recent returns the most recent search logs, newest first
func (r *SearchLogRepo) Recent(ctx context.Context, limit int) ([]*repository.SearchLog, error) {
	query := `
		SELECT id, user_id, query, strategy, response_time_ms, knowledge_base_ids, result_count, cache_hit, timestamp
		FROM search_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search logs: %w", err)
	}
	defer rows.Close()
	return scanSearchLogs(rows)
}

// Since returns all search logs at or after the given time
func (r *SearchLogRepo) Since(ctx context.Context, start time.Time) ([]*repository.SearchLog, error) {
	query := `
		SELECT id, user_id, query, strategy, response_time_ms, knowledge_base_ids, result_count, cache_hit, timestamp
		FROM search_logs
		WHERE timestamp >= $1
		ORDER BY timestamp DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query search logs: %w", err)
	}
	defer rows.Close()
	return scanSearchLogs(rows)
}

type searchLogRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSearchLogs(rows searchLogRows) ([]*repository.SearchLog, error) {
	var logs []*repository.SearchLog
	for rows.Next() {
		var log repository.SearchLog
		var responseMS int64
		var kbIDs []byte
		if err := rows.Scan(&log.ID, &log.UserID, &log.Query, &log.Strategy, &responseMS,
			&kbIDs, &log.ResultCount, &log.CacheHit, &log.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan search log: %w", err)
		}
		log.ResponseTime = time.Duration(responseMS) * time.Millisecond
		if err := json.Unmarshal(kbIDs, &log.KnowledgeBaseIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal knowledge base ids: %w", err)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
