// Package chi exposes the knowledge base over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chishiki/internal/domain"
	"github.com/kailas-cloud/chishiki/internal/domain/filter"
	"github.com/kailas-cloud/chishiki/internal/domain/result"
	"github.com/kailas-cloud/chishiki/internal/repository/oplog"
	"github.com/kailas-cloud/chishiki/internal/usecase/answer"
	"github.com/kailas-cloud/chishiki/internal/usecase/health"
	"github.com/kailas-cloud/chishiki/internal/usecase/ingest"
)

// Service boundaries the server depends on.
type (
	// Answerer answers questions against the knowledge base.
	Answerer interface {
		Answer(ctx context.Context, question string, reqFilters filter.Spec) (answer.Result, error)
	}

	// Searcher runs the raw retrieval pipeline (no default policy).
	Searcher interface {
		Search(ctx context.Context, question string, spec filter.Spec, topK int) ([]result.Result, error)
	}

	// Ingester is the writer side of the knowledge base.
	Ingester interface {
		AddDocument(ctx context.Context, docMeta map[string]any, parts []ingest.ChunkInput) (string, int, error)
		DeleteDocument(ctx context.Context, docID string) error
		ListDocuments(ctx context.Context) []ingest.DocumentInfo
		Export(ctx context.Context, w io.Writer) error
	}

	// HistoryReader lists operation-history records.
	HistoryReader interface {
		List(ctx context.Context, limit int) ([]oplog.Entry, error)
	}

	// HealthChecker reports component health.
	HealthChecker interface {
		Check(ctx context.Context) health.Report
	}
)

// Server exposes the HTTP API.
type Server struct {
	answers Answerer
	search  Searcher
	ingest  Ingester
	history HistoryReader
	health  HealthChecker
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	answers Answerer,
	search Searcher,
	ingester Ingester,
	history HistoryReader,
	healthSvc HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		answers: answers,
		search:  search,
		ingest:  ingester,
		history: history,
		health:  healthSvc,
		logger:  logger,
	}
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/answer", s.handleAnswer)
		r.Post("/search", s.handleSearch)
		r.Post("/documents", s.handleAddDocument)
		r.Get("/documents", s.handleListDocuments)
		r.Delete("/documents/{docID}", s.handleDeleteDocument)
		r.Get("/export", s.handleExport)
		r.Get("/history", s.handleHistory)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

type answerRequest struct {
	Question string         `json:"question"`
	Filters  map[string]any `json:"filters,omitempty"`
}

type answerResponse struct {
	Answer  string          `json:"answer"`
	Sources []answer.Source `json:"sources"`
	Outcome string          `json:"outcome"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "question is required")
		return
	}

	res, err := s.answers.Answer(r.Context(), req.Question, filter.New(req.Filters))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{
		Answer:  res.Answer,
		Sources: res.Sources,
		Outcome: string(res.Outcome),
	})
}

type searchRequest struct {
	Question string         `json:"question"`
	Filters  map[string]any `json:"filters,omitempty"`
	TopK     int            `json:"top_k,omitempty"`
}

type searchHit struct {
	ChunkID  string         `json:"chunk_id"`
	DocID    string         `json:"doc_id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "question is required")
		return
	}

	results, err := s.search.Search(r.Context(), req.Question, filter.New(req.Filters), req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for i := range results {
		c := results[i].Chunk()
		hits = append(hits, searchHit{
			ChunkID:  c.ID(),
			DocID:    c.DocID(),
			Text:     c.Text(),
			Score:    results[i].Score(),
			Metadata: c.Metadata(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

type addDocumentRequest struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Chunks   []struct {
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata,omitempty"`
	} `json:"chunks"`
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "chunks are required")
		return
	}

	parts := make([]ingest.ChunkInput, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		parts = append(parts, ingest.ChunkInput{Text: c.Text, Metadata: c.Metadata})
	}

	docID, added, err := s.ingest.AddDocument(r.Context(), req.Metadata, parts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"doc_id":       docID,
		"chunks_added": added,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.ingest.ListDocuments(r.Context())
	type docOut struct {
		DocID      string `json:"doc_id"`
		SourceFile string `json:"source_file,omitempty"`
		Chunks     int    `json:"chunks"`
	}
	out := make([]docOut, 0, len(docs))
	for _, d := range docs {
		out = append(out, docOut{DocID: d.DocID, SourceFile: d.SourceFile, Chunks: d.Chunks})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.ingest.DeleteDocument(r.Context(), docID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/jsonl")
	w.Header().Set("Content-Disposition", `attachment; filename="knowledge_base.jsonl"`)
	if err := s.ingest.Export(r.Context(), w); err != nil {
		// Headers are already gone; log instead of writing a broken body.
		s.logger.Error("export failed", zap.Error(err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	type entryOut struct {
		Timestamp string         `json:"timestamp"`
		Action    string         `json:"action"`
		Detail    map[string]any `json:"detail,omitempty"`
	}
	out := make([]entryOut, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryOut{
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Action:    e.Action,
			Detail:    e.Detail,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// handleDomainError maps domain sentinels to HTTP statuses. The
// distinction between "no results" (a 200 with a fixed message) and
// "failed to search" (a typed non-200) is preserved here.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range domainErrorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

var domainErrorHandlers = []func(w http.ResponseWriter, err error) bool{
	sentinelHandler(domain.ErrInvalidChunk, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
	sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable),
	sentinelHandler(domain.ErrProvider, http.StatusBadGateway, codeProviderError),
	sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	sentinelHandler(domain.ErrPersistence, http.StatusServiceUnavailable, codePersistenceFailure),
}
