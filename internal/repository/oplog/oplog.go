// Package oplog records the operation history of the knowledge base.
package oplog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chishiki/internal/db"
	"github.com/kailas-cloud/chishiki/internal/domain"
)

// Entry is one operation-history record.
type Entry struct {
	Timestamp time.Time
	Action    string
	Detail    map[string]any
}

// Recorder appends and lists operation records.
type Recorder struct {
	store  db.OpLog
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Recorder.
func New(store db.OpLog, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source (tests).
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends an operation record. Best-effort: a history write
// failure is logged but never fails the operation it describes.
func (r *Recorder) Record(ctx context.Context, action string, detail map[string]any) {
	rec := db.OpRecord{Timestamp: r.now().UTC(), Action: action, Detail: detail}
	if err := r.store.AppendOp(ctx, rec); err != nil {
		r.logger.Warn("failed to record operation",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// List returns up to limit records, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	recs, err := r.store.ListOps(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list operations: %w", domain.ErrPersistence, err)
	}
	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, Entry{Timestamp: rec.Timestamp, Action: rec.Action, Detail: rec.Detail})
	}
	return entries, nil
}
