// Package sqlite implements the storage facade on a local SQLite file
// via the pure-Go modernc driver. This is the default backend: the
// knowledge base lives on disk next to the process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/chishiki/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds SQLite store settings.
type Config struct {
	Path string
	// Create allows opening a path with no existing database file.
	// When false, a missing file is reported as db.ErrNotInitialized.
	Create bool
}

// Store implements db.Store on a single SQLite database file.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the database file and configures the connection.
// Schema creation happens in Init, not here.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if !cfg.Create {
		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", db.ErrNotInitialized, cfg.Path)
		}
	}

	conn, err := sql.Open("sqlite", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc/sqlite serializes writes; a single writer connection avoids
	// SQLITE_BUSY under concurrent ingestion.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	return &Store{conn: conn}, nil
}

// Init creates the schema and the initialization marker. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS kb_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chunks (
		ord      INTEGER PRIMARY KEY AUTOINCREMENT,
		chunk_id TEXT NOT NULL UNIQUE,
		doc_id   TEXT NOT NULL,
		seq      INTEGER NOT NULL,
		text     TEXT NOT NULL,
		vector   BLOB NOT NULL,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	CREATE TABLE IF NOT EXISTS oplog (
		ord    INTEGER PRIMARY KEY AUTOINCREMENT,
		ts     TEXT NOT NULL,
		action TEXT NOT NULL,
		detail TEXT
	);
	INSERT OR IGNORE INTO kb_meta (key, value) VALUES ('schema_version', '1');
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return &db.Error{Op: db.OpInit, Err: err}
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	_ = s.conn.Close()
}

// PutChunks replaces the stored chunk set for one document.
func (s *Store) PutChunks(ctx context.Context, docID string, recs []db.ChunkRecord) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	const insert = `INSERT INTO chunks (chunk_id, doc_id, seq, text, vector, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, rec := range recs {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return &db.Error{Op: db.OpPut, Err: fmt.Errorf("encode metadata for %s: %w", rec.ID, err)}
		}
		if _, err := tx.ExecContext(ctx, insert,
			rec.ID, rec.DocID, rec.Seq, rec.Text, encodeVector(rec.Embedding), string(meta),
		); err != nil {
			return &db.Error{Op: db.OpPut, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	return nil
}

// LoadChunks restores all chunk records in insertion order.
func (s *Store) LoadChunks(ctx context.Context) ([]db.ChunkRecord, error) {
	if err := s.checkInitialized(ctx); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT chunk_id, doc_id, seq, text, vector, metadata FROM chunks ORDER BY ord`)
	if err != nil {
		return nil, &db.Error{Op: db.OpLoad, Err: err}
	}
	defer rows.Close()

	var recs []db.ChunkRecord
	for rows.Next() {
		var rec db.ChunkRecord
		var blob []byte
		var meta sql.NullString
		if err := rows.Scan(&rec.ID, &rec.DocID, &rec.Seq, &rec.Text, &blob, &meta); err != nil {
			return nil, &db.Error{Op: db.OpLoad, Err: err}
		}
		rec.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, &db.Error{Op: db.OpLoad, Err: fmt.Errorf("chunk %s: %w", rec.ID, err)}
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
				return nil, &db.Error{Op: db.OpLoad, Err: fmt.Errorf("chunk %s metadata: %w", rec.ID, err)}
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpLoad, Err: err}
	}
	return recs, nil
}

// DeleteDoc removes every chunk of a document, returning the removed count.
func (s *Store) DeleteDoc(ctx context.Context, docID string) (int, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	if n == 0 {
		return 0, db.ErrDocNotFound
	}
	return int(n), nil
}

// AppendOp appends one operation-history record.
func (s *Store) AppendOp(ctx context.Context, rec db.OpRecord) error {
	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return &db.Error{Op: db.OpAppend, Err: err}
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO oplog (ts, action, detail) VALUES (?, ?, ?)`,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Action, string(detail),
	)
	if err != nil {
		return &db.Error{Op: db.OpAppend, Err: err}
	}
	return nil
}

// ListOps returns up to limit operation records, newest first.
func (s *Store) ListOps(ctx context.Context, limit int) ([]db.OpRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT ts, action, detail FROM oplog ORDER BY ord DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	defer rows.Close()

	var recs []db.OpRecord
	for rows.Next() {
		var ts, action string
		var detail sql.NullString
		if err := rows.Scan(&ts, &action, &detail); err != nil {
			return nil, &db.Error{Op: db.OpList, Err: err}
		}
		rec := db.OpRecord{Action: action}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &rec.Detail); err != nil {
				return nil, &db.Error{Op: db.OpList, Err: err}
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	return recs, nil
}

// checkInitialized distinguishes "no prior save" from a corrupt store.
func (s *Store) checkInitialized(ctx context.Context) error {
	var v string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM kb_meta WHERE key = 'schema_version'`).Scan(&v)
	switch {
	case err == nil:
		return nil
	case err == sql.ErrNoRows || strings.Contains(err.Error(), "no such table"):
		return db.ErrNotInitialized
	default:
		return &db.Error{Op: db.OpLoad, Err: err}
	}
}
