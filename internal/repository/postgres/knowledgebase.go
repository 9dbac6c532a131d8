package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/knakagawa/retrieval/internal/repository"
)

// KnowledgeBaseRepo implements repository.KnowledgeBaseRepository
type KnowledgeBaseRepo struct {
	db *DB
}

// NewKnowledgeBaseRepo creates a new knowledge-base repository
func NewKnowledgeBaseRepo(db *DB) *KnowledgeBaseRepo {
	return &KnowledgeBaseRepo{db: db}
}

// Create creates a new knowledge base
func (r *KnowledgeBaseRepo) Create(ctx context.Context, kb *repository.KnowledgeBase) error {
	query := `
		INSERT INTO knowledge_bases (id, name, description, document_count, chunk_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		kb.ID, kb.Name, kb.Description, kb.DocumentCount, kb.ChunkCount, kb.CreatedAt, kb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}
	return nil
}

// GetByID retrieves a knowledge base by ID
func (r *KnowledgeBaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.KnowledgeBase, error) {
	query := `
		SELECT id, name, description, document_count, chunk_count, created_at, updated_at
		FROM knowledge_bases
		WHERE id = $1
	`
	var kb repository.KnowledgeBase
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&kb.ID, &kb.Name, &kb.Description, &kb.DocumentCount, &kb.ChunkCount,
		&kb.CreatedAt, &kb.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge base: %w", err)
	}
	return &kb, nil
}

// List retrieves knowledge bases with pagination
func (r *KnowledgeBaseRepo) List(ctx context.Context, limit, offset int) ([]*repository.KnowledgeBase, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_bases`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count knowledge bases: %w", err)
	}

	query := `
		SELECT id, name, description, document_count, chunk_count, created_at, updated_at
		FROM knowledge_bases
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	defer rows.Close()

	var kbs []*repository.KnowledgeBase
	for rows.Next() {
		var kb repository.KnowledgeBase
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.DocumentCount,
			&kb.ChunkCount, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		kbs = append(kbs, &kb)
	}
	return kbs, total, rows.Err()
}

// Update updates a knowledge base
func (r *KnowledgeBaseRepo) Update(ctx context.Context, kb *repository.KnowledgeBase) error {
	query := `
		UPDATE knowledge_bases
		SET name = $2, description = $3, document_count = $4, chunk_count = $5, updated_at = $6
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		kb.ID, kb.Name, kb.Description, kb.DocumentCount, kb.ChunkCount, kb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update knowledge base: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a knowledge base
func (r *KnowledgeBaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
