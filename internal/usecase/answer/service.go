// Package answer orchestrates question answering: it derives the
// effective filters, runs retrieval, and grounds the generator's answer
// in the retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chishiki/internal/domain/chunk"
	"github.com/kailas-cloud/chishiki/internal/domain/filter"
	"github.com/kailas-cloud/chishiki/internal/domain/result"
	"github.com/kailas-cloud/chishiki/internal/logger"
	"github.com/kailas-cloud/chishiki/internal/metrics"
)

// Fixed user-facing messages. Provider internals are never surfaced raw.
const (
	NoKnowledgeMessage      = "No matching knowledge was found. Check the expiration dates of the registered knowledge."
	GenerationFailedMessage = "An error occurred while generating the answer."
)

// Outcome is the terminal state of one answer request.
type Outcome string

const (
	// OutcomeAnswered means the generator produced a grounded answer.
	OutcomeAnswered Outcome = "answered"
	// OutcomeNoKnowledge means retrieval found nothing; the generator was
	// not called.
	OutcomeNoKnowledge Outcome = "no_knowledge"
	// OutcomeGenerationFailed means retrieval succeeded but generation
	// failed; the fixed fallback message is returned.
	OutcomeGenerationFailed Outcome = "generation_failed"
)

// Source identifies a chunk that grounded the answer.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	SourceFile string  `json:"source_file,omitempty"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
}

// Result is the caller-facing answer.
type Result struct {
	Answer  string
	Sources []Source
	Outcome Outcome
}

// Service is the answer orchestrator.
type Service struct {
	retriever     Retriever
	generate      Generator
	topK          int
	contextBudget int
	now           func() time.Time
}

// Orchestrator defaults.
const (
	DefaultTopK = 5
	// DefaultContextBudget bounds the grounding context in bytes.
	DefaultContextBudget = 16384
)

// New creates an answer service.
func New(retriever Retriever, generate Generator) *Service {
	return &Service{
		retriever:     retriever,
		generate:      generate,
		topK:          DefaultTopK,
		contextBudget: DefaultContextBudget,
		now:           time.Now,
	}
}

// WithTopK overrides how many chunks ground an answer.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// WithContextBudget overrides the grounding-context byte budget.
func (s *Service) WithContextBudget(n int) *Service {
	if n > 0 {
		s.contextBudget = n
	}
	return s
}

// WithClock overrides the "today" source for the default expiration
// policy (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Answer answers a question against the knowledge base.
//
// The caller's filter spec is treated as immutable: the default "not yet
// expired" policy is applied to a derived copy, so a spec reused across
// requests or shared between sessions never accumulates injected keys.
func (s *Service) Answer(ctx context.Context, question string, reqFilters filter.Spec) (Result, error) {
	log := logger.FromContext(ctx)

	today := s.now().Format("2006-01-02")
	effective := reqFilters.WithDefaultExpiration(today)

	log.Debug("filters resolved",
		zap.String("question", question),
		zap.Any("requested", reqFilters.Map()),
		zap.Any("effective", effective.Map()),
	)

	results, err := s.retriever.Search(ctx, question, effective, s.topK)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: %w", err)
	}

	if len(results) == 0 {
		log.Info("no knowledge found", zap.String("question", question))
		metrics.AnswerRequestsTotal.WithLabelValues(string(OutcomeNoKnowledge)).Inc()
		return Result{Answer: NoKnowledgeMessage, Sources: []Source{}, Outcome: OutcomeNoKnowledge}, nil
	}

	sources := sourcesFrom(results)
	contextText := buildContext(results, s.contextBudget)

	text, err := s.generate.Generate(ctx, question, contextText)
	if err != nil {
		// Root cause stays in the logs; the caller sees the fixed message.
		log.Error("answer generation failed",
			zap.String("question", question),
			zap.Int("sources", len(sources)),
			zap.Error(err),
		)
		metrics.AnswerRequestsTotal.WithLabelValues(string(OutcomeGenerationFailed)).Inc()
		return Result{Answer: GenerationFailedMessage, Sources: sources, Outcome: OutcomeGenerationFailed}, nil
	}

	metrics.AnswerRequestsTotal.WithLabelValues(string(OutcomeAnswered)).Inc()
	return Result{Answer: text, Sources: sources, Outcome: OutcomeAnswered}, nil
}

// buildContext concatenates chunk sections in relevance order, bounded by
// the byte budget. Truncation happens at whole-section granularity and
// the most relevant section is always included.
func buildContext(results []result.Result, budget int) string {
	var out []byte
	for i := range results {
		c := results[i].Chunk()
		section := fmt.Sprintf("[source: %s page: %d]\n%s",
			sourceFile(c), pageOf(c), c.Text())
		if i > 0 {
			if len(out)+2+len(section) > budget {
				break
			}
			out = append(out, "\n\n"...)
		}
		out = append(out, section...)
	}
	return string(out)
}

func sourcesFrom(results []result.Result) []Source {
	sources := make([]Source, 0, len(results))
	for i := range results {
		c := results[i].Chunk()
		sources = append(sources, Source{
			ChunkID:    c.ID(),
			SourceFile: sourceFile(c),
			Page:       pageOf(c),
			Score:      results[i].Score(),
		})
	}
	return sources
}

func sourceFile(c chunk.Chunk) string {
	if f := c.MetaString(chunk.MetaSourceFile); f != "" {
		return f
	}
	return "unknown"
}

func pageOf(c chunk.Chunk) int {
	switch v, _ := c.Meta(chunk.MetaPage); p := v.(type) {
	case float64:
		return int(p)
	case int:
		return p
	}
	return 0
}
