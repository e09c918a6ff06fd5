// Package errors maps the domain's stable error codes onto HTTP status
// codes and the wire shape of an API error response.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aboglioli/configd/internal/core/domain"
)

// APIError is the wire shape of every non-2xx response: {code, message,
// diffs?}.
type APIError struct {
	Code      domain.Code `json:"code"`
	Message   string      `json:"message"`
	Diffs     interface{} `json:"diffs,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAPIError builds a bare APIError.
func NewAPIError(code domain.Code, message string) *APIError {
	return &APIError{Code: code, Message: message, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// WithRequestID attaches the inbound request id, for correlation.
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// StatusCode maps a stable domain.Code to its HTTP status. Validation,
// entity and authorization errors map to semantic 4xx codes;
// infrastructure errors (serde, database) map to 500.
func (e *APIError) StatusCode() int {
	switch e.Code {
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeSchemaNotFound, domain.CodeConfigNotFound:
		return http.StatusNotFound
	case domain.CodeSchemaAlreadyExists, domain.CodeConfigAlreadyExists,
		domain.CodeSchemaContainsConfig, domain.CodeInvalidConfig,
		domain.CodeEmptyID, domain.CodeEmptyName, domain.CodeEmptyInterval,
		domain.CodeInvalidTimestamps, domain.CodeInvalidVersion,
		domain.CodeMismatchedKinds, domain.CodeInvalidArray,
		domain.CodeUnknownRootProp, domain.CodePageOutOfRange,
		domain.CodeInvalidPassword, domain.CodeInvalidEvent:
		return http.StatusBadRequest
	case domain.CodeSerde, domain.CodeDatabase:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// FromDomainError translates a *domain.Error (or any error wrapping one)
// into an APIError, carrying the offending Diff along for invalid_config.
// Errors that are not domain.Errors are treated as internal failures: no
// error is ever swallowed, so they still surface, reported under the
// database code (status 500).
func FromDomainError(err error) *APIError {
	var derr *domain.Error
	if errors.As(err, &derr) {
		apiErr := NewAPIError(derr.Code, derr.Message)
		if derr.Diff != nil {
			apiErr.Diffs = derr.Diff.Diffs()
		}
		return apiErr
	}
	return NewAPIError(domain.CodeDatabase, err.Error())
}

// WriteError writes an APIError as the response body, status-coded per
// StatusCode.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	_ = json.NewEncoder(w).Encode(err)
}

// WriteDomainError is the handler-facing shortcut: translate and write in
// one call, attaching requestID for correlation when present.
func WriteDomainError(w http.ResponseWriter, err error, requestID string) {
	apiErr := FromDomainError(err).WithRequestID(requestID)
	WriteError(w, apiErr)
}
