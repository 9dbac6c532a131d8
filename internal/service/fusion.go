package service

import "sort"

// candidateKeyPrefixLen is how many runes of content participate in
// candidate identity. Two hits from different retrievers sharing a document
// and content prefix are the same underlying passage.
const candidateKeyPrefixLen = 50

// candidateKey identifies the same underlying passage across retrievers
type candidateKey struct {
	documentID    string
	contentPrefix string
}

func keyForResult(r SearchResult) candidateKey {
	return candidateKey{
		documentID:    r.DocumentID,
		contentPrefix: runePrefix(r.Content, candidateKeyPrefixLen),
	}
}

func runePrefix(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// fusedCandidate tracks the per-retriever score components of one passage
type fusedCandidate struct {
	result        SearchResult
	semanticScore float64
	fulltextScore float64
}

// fuseResults merges independently scored semantic and fulltext candidate
// sets into one deduplicated, rescored list. Each candidate's combined score
// is the weighted sum of its components; a missing component contributes 0.
// Weights are applied as given, without renormalizing when they do not sum
// to 1. Candidates below minScore are dropped; survivors are sorted by
// combined score descending.
func fuseResults(semantic, fulltext []SearchResult, semanticWeight, fulltextWeight, minScore float64) []SearchResult {
	candidates := make(map[candidateKey]*fusedCandidate, len(semantic)+len(fulltext))
	order := make([]candidateKey, 0, len(semantic)+len(fulltext))

	// A duplicate key within one list overwrites the earlier occurrence but
	// keeps its position in the merge order.
	for _, r := range semantic {
		key := keyForResult(r)
		if c, ok := candidates[key]; ok {
			c.result = r
			c.semanticScore = r.Score
		} else {
			candidates[key] = &fusedCandidate{result: r, semanticScore: r.Score}
			order = append(order, key)
		}
	}

	for _, r := range fulltext {
		key := keyForResult(r)
		if c, ok := candidates[key]; ok {
			c.fulltextScore = r.Score
		} else {
			candidates[key] = &fusedCandidate{result: r, fulltextScore: r.Score}
			order = append(order, key)
		}
	}

	fused := make([]SearchResult, 0, len(order))
	for _, key := range order {
		c := candidates[key]
		combined := c.semanticScore*semanticWeight + c.fulltextScore*fulltextWeight
		if combined < minScore {
			continue
		}
		c.result.Score = combined
		fused = append(fused, c.result)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
