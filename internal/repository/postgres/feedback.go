package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/knakagawa/retrieval/internal/repository"
)

// FeedbackRepo implements repository.FeedbackRepository
type FeedbackRepo struct {
	db *DB
}

// NewFeedbackRepo creates a new feedback repository
func NewFeedbackRepo(db *DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

// Insert records a feedback entry. A nil SearchID is stored as NULL so the
// search_logs foreign key only applies when feedback references a search.
func (r *FeedbackRepo) Insert(ctx context.Context, fb *repository.FeedbackLog) error {
	query := `
		INSERT INTO feedback_logs (id, search_id, user_id, feedback_type, rating, comment, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		fb.ID, fb.SearchID, fb.UserID, fb.Type, fb.Rating, fb.Comment, fb.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// Since returns all feedback entries at or after the given time
func (r *FeedbackRepo) Since(ctx context.Context, start time.Time) ([]*repository.FeedbackLog, error) {
	query := `
		SELECT id, search_id, user_id, feedback_type, rating, comment, timestamp
		FROM feedback_logs
		WHERE timestamp >= $1
		ORDER BY timestamp DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var logs []*repository.FeedbackLog
	for rows.Next() {
		var fb repository.FeedbackLog
		if err := rows.Scan(&fb.ID, &fb.SearchID, &fb.UserID, &fb.Type,
			&fb.Rating, &fb.Comment, &fb.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		logs = append(logs, &fb)
	}
	return logs, rows.Err()
}
