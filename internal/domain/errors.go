package domain

import "errors"

var (
	// ErrIndexUnavailable signals the vector index has no loaded snapshot.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrPersistence signals the chunk store could not be read or written.
	ErrPersistence = errors.New("persistence failure")
	// ErrEmbeddingUnavailable signals the query embedding step failed.
	// Distinct from an empty retrieval result.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrGenerationFailed signals the answer generator failed after retrieval.
	ErrGenerationFailed = errors.New("answer generation failed")
	// ErrProvider signals a transport/quota/model failure at a provider boundary.
	ErrProvider = errors.New("provider error")
	// ErrInvalidChunk signals a chunk that must not be indexed.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDimensionMismatch signals a vector dimension mismatch.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
