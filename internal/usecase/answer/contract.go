package answer

import (
	"context"

	"github.com/kailas-cloud/chishiki/internal/domain/filter"
	"github.com/kailas-cloud/chishiki/internal/domain/result"
)

// Retriever is the retrieval pipeline boundary.
type Retriever interface {
	Search(ctx context.Context, question string, spec filter.Spec, topK int) ([]result.Result, error)
}

// Generator produces the grounded natural-language answer.
type Generator interface {
	Generate(ctx context.Context, question, contextText string) (string, error)
}
