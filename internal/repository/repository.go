// Package repository defines domain models and data access interfaces for
// knowledge bases, search logs, and feedback.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// KnowledgeBase represents a searchable knowledge base
type KnowledgeBase struct {
	ID            uuid.UUID
	Name          string
	Description   string
	DocumentCount int
	ChunkCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SearchLog records one completed search request. The strategy selector reads
// these back to score strategies against similar past queries.
type SearchLog struct {
	ID               uuid.UUID
	UserID           string
	Query            string
	Strategy         string
	ResponseTime     time.Duration
	KnowledgeBaseIDs []string
	ResultCount      int
	CacheHit         bool
	Timestamp        time.Time
}

// FeedbackLog records user feedback on a search result set. SearchID is nil
// when the feedback is not tied to a logged search.
type FeedbackLog struct {
	ID        uuid.UUID
	SearchID  *uuid.UUID
	UserID    string
	Type      string // "positive" or "negative"
	Rating    float64
	Comment   string
	Timestamp time.Time
}

// KnowledgeBaseRepository defines operations for knowledge-base persistence
type KnowledgeBaseRepository interface {
	Create(ctx context.Context, kb *KnowledgeBase) error
	GetByID(ctx context.Context, id uuid.UUID) (*KnowledgeBase, error)
	List(ctx context.Context, limit, offset int) ([]*KnowledgeBase, int, error)
	Update(ctx context.Context, kb *KnowledgeBase) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SearchLogRepository defines operations for search log persistence.
// Recent must return a stable snapshot: the strategy selector reads it while
// other requests append concurrently.
type SearchLogRepository interface {
	Insert(ctx context.Context, log *SearchLog) error
	Recent(ctx context.Context, limit int) ([]*SearchLog, error)
	Since(ctx context.Context, start time.Time) ([]*SearchLog, error)
}

// FeedbackRepository defines operations for feedback persistence
type FeedbackRepository interface {
	Insert(ctx context.Context, fb *FeedbackLog) error
	Since(ctx context.Context, start time.Time) ([]*FeedbackLog, error)
}
