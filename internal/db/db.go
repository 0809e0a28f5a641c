package db

import (
	"context"
	"time"
)

// ChunkRecord is the storage representation of one indexed chunk.
type ChunkRecord struct {
	ID        string
	DocID     string
	Seq       int
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// OpRecord is one operation-history entry.
type OpRecord struct {
	Timestamp time.Time
	Action    string
	Detail    map[string]any
}

// Store is the storage facade combining all sub-interfaces. Consumers
// should depend on the narrow sub-interfaces instead.
type Store interface {
	Pinger
	ChunkStore
	OpLog
	// Init creates the backing schema and marks the store as initialized.
	// Idempotent.
	Init(ctx context.Context) error
	Close()
}

// Pinger checks storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChunkStore persists and restores chunk records. LoadChunks returns
// ErrNotInitialized when no prior save exists, which is distinguishable
// from corruption (a *Error): callers decide whether "empty" is a
// legitimate first-run state.
type ChunkStore interface {
	PutChunks(ctx context.Context, docID string, recs []ChunkRecord) error
	LoadChunks(ctx context.Context) ([]ChunkRecord, error)
	DeleteDoc(ctx context.Context, docID string) (int, error)
}

// OpLog records the operation history.
type OpLog interface {
	AppendOp(ctx context.Context, rec OpRecord) error
	ListOps(ctx context.Context, limit int) ([]OpRecord, error)
}
