package retrieval

import (
	"context"

	"github.com/kailas-cloud/chishiki/internal/domain/result"
)

// Index answers top-K similarity queries over the chunk population.
type Index interface {
	TopK(vec []float32, k int) ([]result.Result, error)
}

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
