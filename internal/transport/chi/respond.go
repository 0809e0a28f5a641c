package chi

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Wire error codes. Stable identifiers for clients; the message is
// human-readable and may change.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeUnauthorized         = "unauthorized"
	codeDocumentNotFound     = "document_not_found"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeProviderError        = "provider_error"
	codeIndexUnavailable     = "index_unavailable"
	codePersistenceFailure   = "persistence_failure"
	codeInternal             = "internal_error"
)

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

// sentinelHandler builds a handler that responds when err wraps sentinel.
func sentinelHandler(sentinel error, status int, code string) func(http.ResponseWriter, error) bool {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}
