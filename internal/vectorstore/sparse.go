package vectorstore

import (
	"hash/fnv"
	"sort"
	"strings"
)

// SparseEncoder converts text into sparse term-frequency vectors. Scoring
// against indexed sparse vectors happens inside the store; this only maps
// terms onto a stable index space.
type SparseEncoder struct {
	// NumBuckets bounds the index space terms are hashed into.
	NumBuckets uint32
}

// NewSparseEncoder creates an encoder with the default bucket count.
func NewSparseEncoder() *SparseEncoder {
	return &SparseEncoder{NumBuckets: 1 << 20}
}

// Encode converts text into a sparse vector of hashed term frequencies.
// Returns nil when the text has no usable terms.
func (e *SparseEncoder) Encode(text string) *SparseVector {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return nil
	}

	counts := make(map[uint32]float32, len(terms))
	for _, term := range terms {
		term = strings.Trim(term, ".,!?;:\"'()[]{}")
		if term == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(term))
		counts[h.Sum32()%e.NumBuckets]++
	}
	if len(counts) == 0 {
		return nil
	}

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx]
	}
	return &SparseVector{Indices: indices, Values: values}
}
