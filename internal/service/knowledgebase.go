package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/knakagawa/retrieval/internal/embedder"
	"github.com/knakagawa/retrieval/internal/repository"
	"github.com/knakagawa/retrieval/internal/vectorstore"
)

// KnowledgeBaseService manages knowledge bases and their indexed content.
// Index maintenance is thin plumbing over the vector store; all scoring and
// ranking lives in the search pipeline.
type KnowledgeBaseService struct {
	repo     repository.KnowledgeBaseRepository
	store    vectorstore.Store
	embedder embedder.Embedder
	logger   *slog.Logger
}

// NewKnowledgeBaseService creates a new knowledge-base service
func NewKnowledgeBaseService(repo repository.KnowledgeBaseRepository, store vectorstore.Store, emb embedder.Embedder, logger *slog.Logger) *KnowledgeBaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeBaseService{repo: repo, store: store, embedder: emb, logger: logger}
}

// Create registers a new knowledge base and ensures the backing collection
func (s *KnowledgeBaseService) Create(ctx context.Context, name, description string) (*repository.KnowledgeBase, error) {
	if name == "" {
		return nil, fmt.Errorf("knowledge base name is required")
	}

	if err := s.store.EnsureCollection(ctx, s.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	now := time.Now()
	kb := &repository.KnowledgeBase{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, kb); err != nil {
		return nil, err
	}

	s.logger.Info("created knowledge base", "id", kb.ID, "name", kb.Name)
	return kb, nil
}

// Get retrieves a knowledge base by ID
func (s *KnowledgeBaseService) Get(ctx context.Context, id uuid.UUID) (*repository.KnowledgeBase, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves knowledge bases with pagination
func (s *KnowledgeBaseService) List(ctx context.Context, limit, offset int) ([]*repository.KnowledgeBase, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, limit, offset)
}

// Delete removes a knowledge base and its indexed chunks
func (s *KnowledgeBaseService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.store.DeleteKnowledgeBase(ctx, id.String()); err != nil {
		return fmt.Errorf("failed to delete indexed chunks: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deleted knowledge base", "id", id)
	return nil
}

// IndexDocument embeds and indexes one document's chunks into a knowledge base
func (s *KnowledgeBaseService) IndexDocument(ctx context.Context, kbID uuid.UUID, title string, chunks []string, metadata map[string]string) (string, error) {
	kb, err := s.repo.GetByID(ctx, kbID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("document has no content chunks")
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return "", fmt.Errorf("failed to embed chunks: %w", err)
	}

	documentID := uuid.NewString()
	points := make([]vectorstore.Chunk, len(chunks))
	for i, content := range chunks {
		points[i] = vectorstore.Chunk{
			ID:              uuid.NewString(),
			KnowledgeBaseID: kbID.String(),
			DocumentID:      documentID,
			Title:           title,
			Content:         content,
			Vector:          vectors[i],
			Metadata:        metadata,
		}
	}
	if err := s.store.Upsert(ctx, points); err != nil {
		return "", fmt.Errorf("failed to index chunks: %w", err)
	}

	kb.DocumentCount++
	kb.ChunkCount += len(chunks)
	kb.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, kb); err != nil {
		s.logger.Warn("failed to update knowledge base counts", "error", err)
	}

	s.logger.Info("indexed document",
		"knowledge_base", kbID,
		"document", documentID,
		"chunks", len(chunks),
	)
	return documentID, nil
}
