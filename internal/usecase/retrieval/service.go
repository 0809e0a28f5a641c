// Package retrieval composes the vector index and the filter engine into
// a single search operation with a final result cap.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chishiki/internal/domain"
	"github.com/kailas-cloud/chishiki/internal/domain/filter"
	"github.com/kailas-cloud/chishiki/internal/domain/result"
	"github.com/kailas-cloud/chishiki/internal/logger"
	"github.com/kailas-cloud/chishiki/internal/metrics"
)

// Retrieval defaults.
const (
	DefaultTopK = 5
	// DefaultOverfetch is the over-fetch factor: the index is asked for
	// topK * factor candidates to absorb post-filter attrition. Retrieval
	// is bounded; if filtering still leaves fewer than topK results, the
	// pipeline returns fewer rather than re-querying.
	DefaultOverfetch = 5
)

// Service is the retrieval pipeline.
type Service struct {
	index     Index
	embed     Embedder
	overfetch int
}

// New creates a retrieval service.
func New(index Index, embed Embedder) *Service {
	return &Service{index: index, embed: embed, overfetch: DefaultOverfetch}
}

// WithOverfetch overrides the over-fetch factor (values < 1 are ignored).
func (s *Service) WithOverfetch(factor int) *Service {
	if factor >= 1 {
		s.overfetch = factor
	}
	return s
}

// Search embeds the question, ranks candidates by similarity, applies the
// filter spec, and truncates to topK preserving similarity order. An
// embedding failure is reported as ErrEmbeddingUnavailable, distinct from
// a legitimate empty result.
func (s *Service) Search(
	ctx context.Context, question string, spec filter.Spec, topK int,
) ([]result.Result, error) {
	log := logger.FromContext(ctx)
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", domain.ErrEmbeddingUnavailable, err)
	}

	candidates, err := s.index.TopK(vec, topK*s.overfetch)
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	matched := make([]result.Result, 0, topK)
	rejected := 0
	for i := range candidates {
		c := candidates[i].Chunk()
		ok, rej := filter.Evaluate(c, spec)
		if !ok {
			rejected++
			log.Debug("candidate rejected",
				zap.String("chunk_id", c.ID()),
				zap.String("filter_key", rej.Key),
				zap.String("reason", rej.Reason),
			)
			continue
		}
		matched = append(matched, candidates[i])
		if len(matched) == topK {
			break
		}
	}

	log.Debug("retrieval complete",
		zap.Any("filters", spec.Map()),
		zap.Int("candidates", len(candidates)),
		zap.Int("rejected", rejected),
		zap.Int("results", len(matched)),
	)
	metrics.SearchResultsCount.Observe(float64(len(matched)))

	return matched, nil
}
