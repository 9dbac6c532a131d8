package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/knakagawa/retrieval/internal/repository/memory"
	"github.com/knakagawa/retrieval/internal/vectorstore"
)

// fakeIndexStore implements vectorstore.Store for index maintenance tests
type fakeIndexStore struct {
	stubStore
	ensuredDim int
	upserted   []vectorstore.Chunk
	deletedKB  string
}

func (s *fakeIndexStore) EnsureCollection(_ context.Context, dimension int) error {
	s.ensuredDim = dimension
	return nil
}

func (s *fakeIndexStore) Upsert(_ context.Context, chunks []vectorstore.Chunk) error {
	s.upserted = append(s.upserted, chunks...)
	return nil
}

func (s *fakeIndexStore) DeleteKnowledgeBase(_ context.Context, kbID string) error {
	s.deletedKB = kbID
	return nil
}

func newKnowledgeBaseFixture() (*KnowledgeBaseService, *fakeIndexStore) {
	store := &fakeIndexStore{}
	repo := memory.NewStore(0).KnowledgeBases()
	emb := &stubEmbedder{vector: []float32{1, 0, 0}, vectors: [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
	return NewKnowledgeBaseService(repo, store, emb, nil), store
}

func TestKnowledgeBaseService_Create(t *testing.T) {
	svc, store := newKnowledgeBaseFixture()
	ctx := context.Background()

	kb, err := svc.Create(ctx, "handbook", "company handbook")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if kb.ID == uuid.Nil || kb.Name != "handbook" {
		t.Errorf("kb = %+v", kb)
	}
	if store.ensuredDim != 3 {
		t.Errorf("collection dimension = %d, want embedder dimension 3", store.ensuredDim)
	}

	if _, err := svc.Create(ctx, "", ""); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestKnowledgeBaseService_IndexDocument(t *testing.T) {
	svc, store := newKnowledgeBaseFixture()
	ctx := context.Background()

	kb, err := svc.Create(ctx, "handbook", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	docID, err := svc.IndexDocument(ctx, kb.ID, "Onboarding", []string{"chunk a", "chunk b"}, map[string]string{"lang": "en"})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if docID == "" {
		t.Fatal("expected a document ID")
	}

	if len(store.upserted) != 2 {
		t.Fatalf("upserted %d chunks, want 2", len(store.upserted))
	}
	for _, chunk := range store.upserted {
		if chunk.DocumentID != docID || chunk.KnowledgeBaseID != kb.ID.String() {
			t.Errorf("chunk = %+v", chunk)
		}
		if chunk.Title != "Onboarding" || chunk.Metadata["lang"] != "en" {
			t.Errorf("chunk fields = %+v", chunk)
		}
	}

	updated, err := svc.Get(ctx, kb.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.DocumentCount != 1 || updated.ChunkCount != 2 {
		t.Errorf("counts = %d docs, %d chunks, want 1 and 2", updated.DocumentCount, updated.ChunkCount)
	}
}

func TestKnowledgeBaseService_IndexDocumentUnknownKB(t *testing.T) {
	svc, _ := newKnowledgeBaseFixture()

	_, err := svc.IndexDocument(context.Background(), uuid.New(), "t", []string{"c"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown knowledge base")
	}
}

func TestKnowledgeBaseService_Delete(t *testing.T) {
	svc, store := newKnowledgeBaseFixture()
	ctx := context.Background()

	kb, err := svc.Create(ctx, "handbook", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, kb.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.deletedKB != kb.ID.String() {
		t.Errorf("deleted chunks for %s, want %s", store.deletedKB, kb.ID)
	}
	if _, err := svc.Get(ctx, kb.ID); err == nil {
		t.Error("expected error after delete")
	}

	if err := svc.Delete(ctx, kb.ID); err == nil {
		t.Error("expected error deleting a missing knowledge base")
	}
}
