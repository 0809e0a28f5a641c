// Package ingest is the writer side of the knowledge base: it accepts
// pre-chunked document content, embeds it, persists it, and publishes a
// new index snapshot. Ingestion operations are mutually exclusive;
// readers only ever observe a fully pre- or post-update snapshot.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chishiki/internal/domain"
	"github.com/kailas-cloud/chishiki/internal/domain/chunk"
	"github.com/kailas-cloud/chishiki/internal/logger"
	"github.com/kailas-cloud/chishiki/internal/repository/chunkstore"
)

// ChunkInput is one pre-chunked fragment arriving from the ingestion
// boundary (parsing happens outside this system).
type ChunkInput struct {
	Text     string
	Metadata map[string]any
}

// DocumentInfo summarizes one stored document.
type DocumentInfo struct {
	DocID      string
	SourceFile string
	Chunks     int
}

// Service owns the mutable chunk population.
type Service struct {
	mu     sync.Mutex
	repo   ChunkRepo
	index  IndexSwapper
	embed  Embedder
	ops    OpRecorder
	chunks []chunk.Chunk
}

// New creates an ingest service.
func New(repo ChunkRepo, index IndexSwapper, embed Embedder, ops OpRecorder) *Service {
	return &Service{repo: repo, index: index, embed: embed, ops: ops}
}

// Bootstrap restores the persisted knowledge base and installs the first
// index snapshot. A store with no prior save starts empty.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, created, err := s.repo.LoadOrCreate(ctx)
	if err != nil {
		return err
	}
	if err := s.index.Swap(chunks); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	s.chunks = chunks

	log := logger.FromContext(ctx)
	if created {
		log.Info("initialized empty knowledge base")
	} else {
		log.Info("knowledge base restored", zap.Int("chunks", len(chunks)))
	}
	return nil
}

// AddDocument ingests one document's chunks: validates, embeds, persists,
// and publishes the new snapshot. Returns the assigned document id and
// the number of chunks added.
func (s *Service) AddDocument(
	ctx context.Context, docMeta map[string]any, parts []ChunkInput,
) (string, int, error) {
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("%w: document has no chunks", domain.ErrInvalidChunk)
	}
	for i, p := range parts {
		if strings.TrimSpace(p.Text) == "" {
			return "", 0, fmt.Errorf("%w: chunk %d has empty text", domain.ErrInvalidChunk, i)
		}
	}

	docID := uuid.NewString()
	newChunks := make([]chunk.Chunk, 0, len(parts))
	for i, p := range parts {
		vec, err := s.embed.Embed(ctx, p.Text)
		if err != nil {
			return "", 0, fmt.Errorf("%w: embed chunk %d: %w", domain.ErrEmbeddingUnavailable, i, err)
		}
		c, err := chunk.New(
			fmt.Sprintf("%s/%d", docID, i), docID, p.Text, vec, mergeMeta(docMeta, p.Metadata),
		)
		if err != nil {
			return "", 0, err
		}
		newChunks = append(newChunks, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SaveDocument(ctx, docID, newChunks); err != nil {
		return "", 0, err
	}
	all := make([]chunk.Chunk, 0, len(s.chunks)+len(newChunks))
	all = append(all, s.chunks...)
	all = append(all, newChunks...)
	if err := s.index.Swap(all); err != nil {
		return "", 0, fmt.Errorf("install snapshot: %w", err)
	}
	s.chunks = all

	s.ops.Record(ctx, "add_document", map[string]any{
		"doc_id": docID,
		"chunks": len(newChunks),
		"file":   metaString(docMeta, chunk.MetaSourceFile),
	})
	logger.FromContext(ctx).Info("document added",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(newChunks)),
	)
	return docID, len(newChunks), nil
}

// DeleteDocument removes a document and republishes the snapshot.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.repo.DeleteDocument(ctx, docID)
	if err != nil {
		return err
	}

	remaining := make([]chunk.Chunk, 0, len(s.chunks))
	for i := range s.chunks {
		if s.chunks[i].DocID() != docID {
			remaining = append(remaining, s.chunks[i])
		}
	}
	if err := s.index.Swap(remaining); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	s.chunks = remaining

	s.ops.Record(ctx, "delete_document", map[string]any{
		"doc_id": docID,
		"chunks": removed,
	})
	logger.FromContext(ctx).Info("document deleted",
		zap.String("doc_id", docID),
		zap.Int("chunks", removed),
	)
	return nil
}

// ListDocuments summarizes the stored documents in insertion order.
func (s *Service) ListDocuments(_ context.Context) []DocumentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var order []string
	byDoc := make(map[string]*DocumentInfo)
	for i := range s.chunks {
		c := &s.chunks[i]
		info, ok := byDoc[c.DocID()]
		if !ok {
			info = &DocumentInfo{DocID: c.DocID(), SourceFile: c.MetaString(chunk.MetaSourceFile)}
			byDoc[c.DocID()] = info
			order = append(order, c.DocID())
		}
		info.Chunks++
	}

	docs := make([]DocumentInfo, 0, len(order))
	for _, id := range order {
		docs = append(docs, *byDoc[id])
	}
	return docs
}

// Export writes the entire knowledge base as JSON Lines.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	chunks := s.chunks
	s.mu.Unlock()

	if err := chunkstore.Export(w, chunks); err != nil {
		return err
	}
	s.ops.Record(ctx, "export", map[string]any{"chunks": len(chunks)})
	return nil
}

func mergeMeta(docMeta, partMeta map[string]any) map[string]any {
	merged := make(map[string]any, len(docMeta)+len(partMeta))
	for k, v := range docMeta {
		merged[k] = v
	}
	for k, v := range partMeta {
		merged[k] = v
	}
	return merged
}

func metaString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
