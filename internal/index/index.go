// Package index holds the in-memory vector similarity index. Reads run
// lock-free over an immutable snapshot; writers publish a fully built
// replacement snapshot atomically, so concurrent searches observe either
// the pre-update or the post-update population, never a torn state.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/kailas-cloud/chishiki/internal/domain"
	"github.com/kailas-cloud/chishiki/internal/domain/chunk"
	"github.com/kailas-cloud/chishiki/internal/domain/result"
)

type snapshot struct {
	chunks []chunk.Chunk
	dim    int
}

// Index answers top-K cosine similarity queries over the chunk population.
type Index struct {
	snap atomic.Pointer[snapshot]
}

// New creates an Index with no snapshot installed. TopK fails with
// ErrIndexUnavailable until the first Swap.
func New() *Index {
	return &Index{}
}

// Swap validates the chunk set and installs it as the new snapshot.
// All embeddings must share one dimension; an empty set is valid (a
// legitimate first-run state).
func (ix *Index) Swap(chunks []chunk.Chunk) error {
	dim := 0
	for i := range chunks {
		v := chunks[i].Vector()
		if len(v) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidChunk, chunks[i].ID())
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return fmt.Errorf("%w: chunk %s has dimension %d, index has %d",
				domain.ErrDimensionMismatch, chunks[i].ID(), len(v), dim)
		}
	}
	ix.snap.Store(&snapshot{chunks: chunks, dim: dim})
	return nil
}

// Ready reports whether a snapshot has been installed.
func (ix *Index) Ready() bool {
	return ix.snap.Load() != nil
}

// Size returns the number of indexed chunks.
func (ix *Index) Size() int {
	if s := ix.snap.Load(); s != nil {
		return len(s.chunks)
	}
	return 0
}

// Dimensions returns the embedding dimension of the current snapshot,
// or 0 when empty.
func (ix *Index) Dimensions() int {
	if s := ix.snap.Load(); s != nil {
		return s.dim
	}
	return 0
}

// TopK returns the k most similar chunks to the query vector, ignoring
// metadata, most relevant first. Ties are broken by chunk insertion order.
// If fewer than k chunks are indexed, all of them are returned.
func (ix *Index) TopK(vec []float32, k int) ([]result.Result, error) {
	s := ix.snap.Load()
	if s == nil {
		return nil, fmt.Errorf("%w: no snapshot loaded", domain.ErrIndexUnavailable)
	}
	if k <= 0 {
		return nil, fmt.Errorf("top-k must be positive, got %d", k)
	}
	if len(s.chunks) == 0 {
		return nil, nil
	}
	if len(vec) != s.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			domain.ErrDimensionMismatch, len(vec), s.dim)
	}

	order := make([]int, len(s.chunks))
	scores := make([]float64, len(s.chunks))
	for i := range s.chunks {
		order[i] = i
		scores[i] = cosine(vec, s.chunks[i].Vector())
	}
	// Stable sort keeps insertion order on equal scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]result.Result, 0, k)
	for _, i := range order[:k] {
		out = append(out, result.New(s.chunks[i], scores[i]))
	}
	return out, nil
}

// cosine returns the cosine similarity of two equal-length vectors,
// or 0 when either has zero norm.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
