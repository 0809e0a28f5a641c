package result

import "github.com/kailas-cloud/chishiki/internal/domain/chunk"

// Result is a single retrieval hit: a chunk with its similarity score.
type Result struct {
	chunk chunk.Chunk
	score float64
}

// New creates a retrieval result.
func New(c chunk.Chunk, score float64) Result {
	return Result{chunk: c, score: score}
}

// Chunk returns the retrieved chunk.
func (r *Result) Chunk() chunk.Chunk { return r.chunk }

// Score returns the cosine similarity score (higher is more relevant).
func (r *Result) Score() float64 { return r.score }
