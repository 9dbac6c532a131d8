package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/knakagawa/retrieval/internal/embedder"
	"github.com/knakagawa/retrieval/internal/reranker"
)

// DefaultClusterEps is the default cosine-distance neighborhood radius for
// result clustering.
const DefaultClusterEps = 0.3

// Clusterer groups near-duplicate results by embedding similarity and
// reorders the output so each topic's strongest match surfaces early.
type Clusterer struct {
	embedder embedder.Embedder
	eps      float64
	logger   *slog.Logger
}

// NewClusterer creates a clustering engine. eps <= 0 uses the default radius.
func NewClusterer(e embedder.Embedder, eps float64, logger *slog.Logger) *Clusterer {
	if eps <= 0 {
		eps = DefaultClusterEps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clusterer{embedder: e, eps: eps, logger: logger}
}

// Cluster partitions results into density-based groups over cosine distance.
// Every result belongs to some cluster; isolated results form singleton
// clusters. Output is grouped by ascending cluster id (input-order derived)
// with members sorted by score descending. Fewer than 2 results is a no-op.
// Any internal failure returns the input unchanged with no clusters.
func (c *Clusterer) Cluster(ctx context.Context, results []SearchResult) ([]SearchResult, []ClusterInfo) {
	if len(results) < 2 {
		return results, nil
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(results) {
		c.logger.Warn("clustering skipped, embedding failed", "error", err)
		return results, nil
	}

	labels := densityCluster(vectors, c.eps)

	// Group member indices per label; labels are assigned in input order so
	// ascending label id is first-seen order
	groups := make(map[int][]int)
	maxLabel := 0
	for i, label := range labels {
		groups[label] = append(groups[label], i)
		if label > maxLabel {
			maxLabel = label
		}
	}

	clustered := make([]SearchResult, 0, len(results))
	clusters := make([]ClusterInfo, 0, maxLabel+1)
	for label := 0; label <= maxLabel; label++ {
		members := groups[label]
		if len(members) == 0 {
			continue
		}

		sort.SliceStable(members, func(i, j int) bool {
			return results[members[i]].Score > results[members[j]].Score
		})

		// Representative title comes from the highest-scoring member
		name := results[members[0]].Title
		if name == "" {
			name = fmt.Sprintf("Cluster %d", label+1)
		}

		for _, idx := range members {
			r := results[idx]
			r.Cluster = name
			clustered = append(clustered, r)
		}
		clusters = append(clusters, ClusterInfo{Name: name, Count: len(members)})
	}

	return clustered, clusters
}

// densityCluster assigns a cluster label to every vector using density-based
// expansion over cosine distance with minimum cluster size 1. With that
// minimum every point is a core point, so clusters are the connected
// components of the eps-neighborhood graph, labeled in input order.
func densityCluster(vectors [][]float32, eps float64) []int {
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	for i := range vectors {
		if labels[i] != -1 {
			continue
		}
		// Expand a new cluster from this unassigned point
		labels[i] = next
		queue := []int{i}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			for j := range vectors {
				if labels[j] != -1 {
					continue
				}
				if cosineDistance(vectors[p], vectors[j]) <= eps {
					labels[j] = next
					queue = append(queue, j)
				}
			}
		}
		next++
	}
	return labels
}

func cosineDistance(a, b []float32) float64 {
	return 1 - reranker.CosineSimilarity(a, b)
}
