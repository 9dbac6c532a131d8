// Package memory provides in-memory implementations of the repository
// interfaces. Used when no database is configured, and as a test double.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knakagawa/retrieval/internal/repository"
)

// Store holds all in-memory collections. Search logs are append-only and
// bounded; readers always receive a copied snapshot, so concurrent appends
// never invalidate a reader.
type Store struct {
	mu         sync.RWMutex
	kbs        map[uuid.UUID]*repository.KnowledgeBase
	searchLogs []*repository.SearchLog
	feedback   []*repository.FeedbackLog
	maxLogs    int
}

// NewStore creates a new in-memory store retaining at most maxLogs search logs.
func NewStore(maxLogs int) *Store {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &Store{
		kbs:     make(map[uuid.UUID]*repository.KnowledgeBase),
		maxLogs: maxLogs,
	}
}

// KnowledgeBases returns the knowledge-base repository view of the store.
func (s *Store) KnowledgeBases() repository.KnowledgeBaseRepository { return (*kbRepo)(s) }

// SearchLogs returns the search-log repository view of the store.
func (s *Store) SearchLogs() repository.SearchLogRepository { return (*searchLogRepo)(s) }

// Feedback returns the feedback repository view of the store.
func (s *Store) Feedback() repository.FeedbackRepository { return (*feedbackRepo)(s) }

type kbRepo Store

func (r *kbRepo) Create(_ context.Context, kb *repository.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *kb
	r.kbs[kb.ID] = &cp
	return nil
}

func (r *kbRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.KnowledgeBase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kb, ok := r.kbs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *kb
	return &cp, nil
}

func (r *kbRepo) List(_ context.Context, limit, offset int) ([]*repository.KnowledgeBase, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*repository.KnowledgeBase, 0, len(r.kbs))
	for _, kb := range r.kbs {
		cp := *kb
		all = append(all, &cp)
	}
	total := len(all)

	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *kbRepo) Update(_ context.Context, kb *repository.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kbs[kb.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *kb
	r.kbs[kb.ID] = &cp
	return nil
}

func (r *kbRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kbs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.kbs, id)
	return nil
}

type searchLogRepo Store

func (r *searchLogRepo) Insert(_ context.Context, log *repository.SearchLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.searchLogs = append(r.searchLogs, &cp)
	// Trim oldest entries past the retention bound
	if len(r.searchLogs) > r.maxLogs {
		r.searchLogs = r.searchLogs[len(r.searchLogs)-r.maxLogs:]
	}
	return nil
}

func (r *searchLogRepo) Recent(_ context.Context, limit int) ([]*repository.SearchLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.searchLogs)
	if limit > 0 && limit < n {
		n = limit
	}
	// Newest first
	out := make([]*repository.SearchLog, 0, n)
	for i := len(r.searchLogs) - 1; i >= 0 && len(out) < n; i-- {
		cp := *r.searchLogs[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *searchLogRepo) Since(_ context.Context, start time.Time) ([]*repository.SearchLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.SearchLog
	for i := len(r.searchLogs) - 1; i >= 0; i-- {
		if r.searchLogs[i].Timestamp.Before(start) {
			continue
		}
		cp := *r.searchLogs[i]
		out = append(out, &cp)
	}
	return out, nil
}

type feedbackRepo Store

func (r *feedbackRepo) Insert(_ context.Context, fb *repository.FeedbackLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *fb
	r.feedback = append(r.feedback, &cp)
	return nil
}

func (r *feedbackRepo) Since(_ context.Context, start time.Time) ([]*repository.FeedbackLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.FeedbackLog
	for i := len(r.feedback) - 1; i >= 0; i-- {
		if r.feedback[i].Timestamp.Before(start) {
			continue
		}
		cp := *r.feedback[i]
		out = append(out, &cp)
	}
	return out, nil
}
