package ingest

import (
	"context"

	"github.com/kailas-cloud/chishiki/internal/domain/chunk"
)

// ChunkRepo is the persistence boundary for chunk sets.
type ChunkRepo interface {
	LoadOrCreate(ctx context.Context) (chunks []chunk.Chunk, created bool, err error)
	SaveDocument(ctx context.Context, docID string, chunks []chunk.Chunk) error
	DeleteDocument(ctx context.Context, docID string) (int, error)
}

// IndexSwapper publishes a new chunk population to the vector index.
type IndexSwapper interface {
	Swap(chunks []chunk.Chunk) error
}

// Embedder vectorizes chunk text at ingestion time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpRecorder records operation history. Best-effort.
type OpRecorder interface {
	Record(ctx context.Context, action string, detail map[string]any)
}
