package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hrygo/personaflow/plugin/ai/agent"
	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

// ErrorCode represents a specific error type surfaced by the API.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodePersonaNotFound indicates the requested persona does not exist.
	ErrCodePersonaNotFound ErrorCode = "PERSONA_NOT_FOUND"
	// ErrCodeRecollectionNotFound indicates the requested recollection does not exist.
	ErrCodeRecollectionNotFound ErrorCode = "RECOLLECTION_NOT_FOUND"
	// ErrCodeRecollectionExists indicates a create named an id already in use.
	ErrCodeRecollectionExists ErrorCode = "RECOLLECTION_EXISTS"
	// ErrCodeLLMUnavailable indicates the generation backend cannot be reached.
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeStoreUnavailable indicates the recollection store failed.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal is the catch-all.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// AIError represents a structured API error.
type AIError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value any) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HTTPStatus maps the code to a response status.
func (e *AIError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodePersonaNotFound, ErrCodeRecollectionNotFound:
		return http.StatusNotFound
	case ErrCodeRecollectionExists:
		return http.StatusConflict
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeLLMUnavailable, ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeContextCanceled:
		// nginx's "client closed request"
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// PersonaNotFound creates a persona not found error.
func PersonaNotFound(id string) *AIError {
	return &AIError{Code: ErrCodePersonaNotFound, Message: fmt.Sprintf("persona not found: %s", id)}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *AIError {
	return &AIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// LLMUnavailable creates an LLM unavailable error.
func LLMUnavailable(cause error) *AIError {
	return &AIError{Code: ErrCodeLLMUnavailable, Message: "generation backend unreachable", Cause: cause}
}

// StoreUnavailable creates a store failure error.
func StoreUnavailable(cause error) *AIError {
	return &AIError{Code: ErrCodeStoreUnavailable, Message: "recollection store failed", Cause: cause}
}

// Wrap wraps an existing error with a code.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error chain carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the chain holds no AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}

// FromError classifies a domain error. Unknown errors become INTERNAL.
func FromError(err error) *AIError {
	if err == nil {
		return nil
	}
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr
	}
	switch {
	case errors.Is(err, agent.ErrInvalidRequest),
		errors.Is(err, recollection.ErrInvalidRecollection),
		errors.Is(err, persona.ErrInvalidPersona):
		return Wrap(err, ErrCodeInvalidArgument, "invalid argument")
	case errors.Is(err, persona.ErrNotFound):
		return Wrap(err, ErrCodePersonaNotFound, "persona not found")
	case errors.Is(err, recollection.ErrNotFound):
		return Wrap(err, ErrCodeRecollectionNotFound, "recollection not found")
	case errors.Is(err, recollection.ErrDuplicateID):
		return Wrap(err, ErrCodeRecollectionExists, "recollection id already exists")
	case generation.IsUnreachable(err):
		return LLMUnavailable(err)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "operation timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeContextCanceled, "operation canceled")
	default:
		return Wrap(err, ErrCodeInternal, "internal error")
	}
}
