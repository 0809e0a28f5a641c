// Package redis implements the storage facade on Redis via rueidis.
// Chunks are stored as per-document JSON values plus a document list that
// preserves insertion order; similarity search itself stays in-process.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/chishiki/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements db.Store via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore creates a Redis store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "chishiki:"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) keyMeta() string            { return s.prefix + "meta:init" }
func (s *Store) keyDocs() string            { return s.prefix + "docs" }
func (s *Store) keyDoc(docID string) string { return s.prefix + "doc:" + docID }
func (s *Store) keyOplog() string           { return s.prefix + "oplog" }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Init writes the initialization marker. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	cmd := s.client.B().Set().Key(s.keyMeta()).Value("1").Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpInit, Err: err}
	}
	return nil
}

type chunkDTO struct {
	ID        string         `json:"id"`
	DocID     string         `json:"doc_id"`
	Seq       int            `json:"seq"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PutChunks replaces the stored chunk set for one document.
func (s *Store) PutChunks(ctx context.Context, docID string, recs []db.ChunkRecord) error {
	dtos := make([]chunkDTO, 0, len(recs))
	for _, r := range recs {
		dtos = append(dtos, chunkDTO(r))
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}

	existed, err := s.client.Do(ctx, s.client.B().Exists().Key(s.keyDoc(docID)).Build()).AsInt64()
	if err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}

	cmd := s.client.B().Set().Key(s.keyDoc(docID)).Value(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	if existed == 0 {
		push := s.client.B().Rpush().Key(s.keyDocs()).Element(docID).Build()
		if err := s.client.Do(ctx, push).Error(); err != nil {
			return &db.Error{Op: db.OpPut, Err: err}
		}
	}
	return nil
}

// LoadChunks restores all chunk records, documents in insertion order.
func (s *Store) LoadChunks(ctx context.Context) ([]db.ChunkRecord, error) {
	marker, err := s.client.Do(ctx, s.client.B().Exists().Key(s.keyMeta()).Build()).AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpLoad, Err: err}
	}
	if marker == 0 {
		return nil, db.ErrNotInitialized
	}

	docIDs, err := s.client.Do(ctx,
		s.client.B().Lrange().Key(s.keyDocs()).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLoad, Err: err}
	}

	var recs []db.ChunkRecord
	for _, docID := range docIDs {
		data, err := s.client.Do(ctx, s.client.B().Get().Key(s.keyDoc(docID)).Build()).AsBytes()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, &db.Error{Op: db.OpLoad, Err: err}
		}
		var dtos []chunkDTO
		if err := json.Unmarshal(data, &dtos); err != nil {
			return nil, &db.Error{Op: db.OpLoad, Err: fmt.Errorf("document %s: %w", docID, err)}
		}
		for _, dto := range dtos {
			recs = append(recs, db.ChunkRecord(dto))
		}
	}
	return recs, nil
}

// DeleteDoc removes every chunk of a document, returning the removed count.
func (s *Store) DeleteDoc(ctx context.Context, docID string) (int, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.keyDoc(docID)).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, db.ErrDocNotFound
		}
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	var dtos []chunkDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}

	if err := s.client.Do(ctx, s.client.B().Del().Key(s.keyDoc(docID)).Build()).Error(); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	lrem := s.client.B().Lrem().Key(s.keyDocs()).Count(0).Element(docID).Build()
	if err := s.client.Do(ctx, lrem).Error(); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	return len(dtos), nil
}

type opDTO struct {
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// AppendOp appends one operation-history record.
func (s *Store) AppendOp(ctx context.Context, rec db.OpRecord) error {
	data, err := json.Marshal(opDTO{
		Timestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    rec.Action,
		Detail:    rec.Detail,
	})
	if err != nil {
		return &db.Error{Op: db.OpAppend, Err: err}
	}
	cmd := s.client.B().Rpush().Key(s.keyOplog()).Element(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpAppend, Err: err}
	}
	return nil
}

// ListOps returns up to limit operation records, newest first.
func (s *Store) ListOps(ctx context.Context, limit int) ([]db.OpRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	cmd := s.client.B().Lrange().Key(s.keyOplog()).Start(int64(-limit)).Stop(-1).Build()
	items, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}

	recs := make([]db.OpRecord, 0, len(items))
	// LRANGE yields oldest first; reverse into newest-first order.
	for i := len(items) - 1; i >= 0; i-- {
		var dto opDTO
		if err := json.Unmarshal([]byte(items[i]), &dto); err != nil {
			return nil, &db.Error{Op: db.OpList, Err: err}
		}
		rec := db.OpRecord{Action: dto.Action, Detail: dto.Detail}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, dto.Timestamp)
		recs = append(recs, rec)
	}
	return recs, nil
}
