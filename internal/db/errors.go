package db

import "errors"

// Sentinel errors for storage operations.
var (
	ErrNotInitialized = errors.New("db: store not initialized")
	ErrDocNotFound    = errors.New("db: document not found")
)

// Op constants name the failing storage operation for error context.
const (
	OpInit   = "init"
	OpPut    = "put_chunks"
	OpLoad   = "load_chunks"
	OpDelete = "delete_doc"
	OpAppend = "append_op"
	OpList   = "list_ops"
	OpPing   = "ping"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
