// Package chunkstore adapts the storage facade to the chunk domain model
// and owns the logical save/load contract of the knowledge base.
package chunkstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kailas-cloud/chishiki/internal/db"
	"github.com/kailas-cloud/chishiki/internal/domain"
	"github.com/kailas-cloud/chishiki/internal/domain/chunk"
)

// Repo persists and restores chunks through a db.Store backend.
type Repo struct {
	store db.Store
}

// New creates a chunk repository.
func New(store db.Store) *Repo {
	return &Repo{store: store}
}

// LoadOrCreate restores the persisted chunk set. A store with no prior
// save is initialized and reported as empty with created=true; anything
// else that prevents loading is a persistence failure, never silently
// treated as an empty knowledge base.
func (r *Repo) LoadOrCreate(ctx context.Context) (chunks []chunk.Chunk, created bool, err error) {
	recs, err := r.store.LoadChunks(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNotInitialized) {
			if err := r.store.Init(ctx); err != nil {
				return nil, false, fmt.Errorf("%w: initialize store: %w", domain.ErrPersistence, err)
			}
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("%w: load chunks: %w", domain.ErrPersistence, err)
	}

	chunks = make([]chunk.Chunk, 0, len(recs))
	for _, rec := range recs {
		chunks = append(chunks, chunk.Reconstruct(rec.ID, rec.DocID, rec.Text, rec.Embedding, rec.Metadata))
	}
	return chunks, false, nil
}

// SaveDocument persists the chunk set of one document.
func (r *Repo) SaveDocument(ctx context.Context, docID string, chunks []chunk.Chunk) error {
	recs := make([]db.ChunkRecord, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		recs = append(recs, db.ChunkRecord{
			ID:        c.ID(),
			DocID:     c.DocID(),
			Seq:       i,
			Text:      c.Text(),
			Embedding: c.Vector(),
			Metadata:  c.Metadata(),
		})
	}
	if err := r.store.PutChunks(ctx, docID, recs); err != nil {
		return fmt.Errorf("%w: save document %s: %w", domain.ErrPersistence, docID, err)
	}
	return nil
}

// DeleteDocument removes a document's chunks, returning the removed count.
func (r *Repo) DeleteDocument(ctx context.Context, docID string) (int, error) {
	n, err := r.store.DeleteDoc(ctx, docID)
	if err != nil {
		if errors.Is(err, db.ErrDocNotFound) {
			return 0, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
		}
		return 0, fmt.Errorf("%w: delete document %s: %w", domain.ErrPersistence, docID, err)
	}
	return n, nil
}

// exportRecord is one line of the JSONL knowledge-base dump.
type exportRecord struct {
	DocID    string         `json:"doc_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Export writes the entire knowledge base as JSON Lines.
func Export(w io.Writer, chunks []chunk.Chunk) error {
	enc := json.NewEncoder(w)
	for i := range chunks {
		c := &chunks[i]
		if err := enc.Encode(exportRecord{DocID: c.DocID(), Text: c.Text(), Metadata: c.Metadata()}); err != nil {
			return fmt.Errorf("export chunk %s: %w", c.ID(), err)
		}
	}
	return nil
}
