package service

import (
	"context"
	"errors"
	"testing"
)

// stubEmbedder returns canned vectors; EmbedBatch maps texts to vectors by
// position.
type stubEmbedder struct {
	vector  []float32
	vectors [][]float32
	err     error
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if len(e.vectors) < len(texts) {
		return e.vectors, nil
	}
	return e.vectors[:len(texts)], nil
}

func (e *stubEmbedder) Dimension() int    { return len(e.vector) }
func (e *stubEmbedder) ModelName() string { return "stub" }

func TestClusterer_FewResultsNoOp(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("must not be called")}
	clusterer := NewClusterer(emb, 0, nil)

	results, clusters := clusterer.Cluster(context.Background(), nil)
	if results != nil || clusters != nil {
		t.Errorf("empty input should pass through, got %v, %v", results, clusters)
	}

	single := []SearchResult{{Title: "only"}}
	results, clusters = clusterer.Cluster(context.Background(), single)
	if len(results) != 1 || clusters != nil {
		t.Errorf("single result should pass through, got %v, %v", results, clusters)
	}
}

func TestClusterer_GroupsBySimilarity(t *testing.T) {
	results := []SearchResult{
		{Title: "Intro to Go", Content: "a", Score: 0.8},
		{Title: "Go basics", Content: "b", Score: 0.9},
		{Title: "Rust intro", Content: "c", Score: 0.7},
		{Title: "Rust guide", Content: "d", Score: 0.6},
	}
	emb := &stubEmbedder{vectors: [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
		{0, 1},
	}}
	clusterer := NewClusterer(emb, 0.3, nil)

	clustered, clusters := clusterer.Cluster(context.Background(), results)

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}

	// First cluster keeps input-order identity but sorts members by score
	wantTitles := []string{"Go basics", "Intro to Go", "Rust intro", "Rust guide"}
	for i, want := range wantTitles {
		if clustered[i].Title != want {
			t.Errorf("position %d = %s, want %s", i, clustered[i].Title, want)
		}
	}

	// Representative name is the top scorer's title
	if clusters[0].Name != "Go basics" || clusters[0].Count != 2 {
		t.Errorf("cluster 0 = %+v, want {Go basics 2}", clusters[0])
	}
	if clusters[1].Name != "Rust intro" || clusters[1].Count != 2 {
		t.Errorf("cluster 1 = %+v, want {Rust intro 2}", clusters[1])
	}

	for i := 0; i < 2; i++ {
		if clustered[i].Cluster != "Go basics" {
			t.Errorf("member %d cluster label = %s, want Go basics", i, clustered[i].Cluster)
		}
	}
}

func TestClusterer_EmbeddingFailureReturnsInputUnchanged(t *testing.T) {
	results := []SearchResult{
		{Title: "first", Score: 0.5},
		{Title: "second", Score: 0.9},
	}
	emb := &stubEmbedder{err: errors.New("model offline")}
	clusterer := NewClusterer(emb, 0, nil)

	clustered, clusters := clusterer.Cluster(context.Background(), results)

	if clusters != nil {
		t.Errorf("expected nil clusters on failure, got %v", clusters)
	}
	if clustered[0].Title != "first" || clustered[1].Title != "second" {
		t.Errorf("order should be preserved on failure, got %v", clustered)
	}
}

func TestClusterer_EmptyTitleFallbackName(t *testing.T) {
	results := []SearchResult{
		{Title: "Named", Content: "a", Score: 0.9},
		{Title: "", Content: "b", Score: 0.8},
	}
	emb := &stubEmbedder{vectors: [][]float32{
		{1, 0},
		{0, 1},
	}}
	clusterer := NewClusterer(emb, 0.3, nil)

	_, clusters := clusterer.Cluster(context.Background(), results)

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[1].Name != "Cluster 2" {
		t.Errorf("untitled cluster name = %s, want Cluster 2", clusters[1].Name)
	}
}

func TestDensityCluster_TransitiveNeighborhoods(t *testing.T) {
	// b is within eps of both a and c, pulling all three together even
	// though a and c are not direct neighbors
	vectors := [][]float32{
		{1, 0},
		{0.9, 0.43},
		{0.62, 0.78},
		{-1, 0},
	}
	labels := densityCluster(vectors, 0.15)

	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Errorf("chained points should share a label, got %v", labels)
	}
	if labels[3] == labels[0] {
		t.Errorf("distant point should get its own label, got %v", labels)
	}
	if labels[0] != 0 || labels[3] != 1 {
		t.Errorf("labels should follow input order, got %v", labels)
	}
}
