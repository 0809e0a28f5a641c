package domain

import "context"

// Embedder vectorizes text into a fixed-dimension embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a natural-language answer grounded in the given context.
type Generator interface {
	Generate(ctx context.Context, question, contextText string) (string, error)
}

// HealthChecker reports availability of an external collaborator.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
