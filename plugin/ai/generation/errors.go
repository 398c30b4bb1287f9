package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hrygo/personaflow/plugin/ai"
)

// FailureKind classifies a failed generation call.
type FailureKind string

const (
	// FailureEmptyResponse means the backend answered but with no usable content.
	FailureEmptyResponse FailureKind = "EMPTY_RESPONSE"
	// FailureBackendError means the backend rejected or failed the request.
	FailureBackendError FailureKind = "BACKEND_ERROR"
	// FailureUnreachable means the backend could not be reached at all.
	FailureUnreachable FailureKind = "BACKEND_UNREACHABLE"
)

var (
	// ErrEmptyResponse is matched by errors.Is for FailureEmptyResponse errors.
	ErrEmptyResponse = errors.New("empty response")
	// ErrBackend is matched by errors.Is for FailureBackendError errors.
	ErrBackend = errors.New("backend error")
	// ErrUnreachable is matched by errors.Is for FailureUnreachable errors.
	ErrUnreachable = errors.New("backend unreachable")
)

// Error is the typed failure returned by Client.GenerateText.
type Error struct {
	Kind    FailureKind
	Purpose string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation %s: %s", e.Purpose, e.Kind)
	}
	return fmt.Sprintf("generation %s: %s: %v", e.Purpose, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrEmptyResponse:
		return e.Kind == FailureEmptyResponse
	case ErrBackend:
		return e.Kind == FailureBackendError
	case ErrUnreachable:
		return e.Kind == FailureUnreachable
	}
	return false
}

// KindOf returns the failure kind of err, or "" when err is not a generation error.
func KindOf(err error) FailureKind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}

// IsUnreachable reports whether err means the backend could not be reached.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// classify wraps a raw backend error into a typed generation error.
func classify(purpose string, err error) *Error {
	switch {
	case errors.Is(err, ai.ErrEmptyCompletion):
		return &Error{Kind: FailureEmptyResponse, Purpose: purpose, Err: err}
	case isNetworkError(err):
		return &Error{Kind: FailureUnreachable, Purpose: purpose, Err: err}
	default:
		return &Error{Kind: FailureBackendError, Purpose: purpose, Err: err}
	}
}

// isNetworkError reports connection-level failures. Deadlines are not included:
// a timed out call reached the backend and is a BACKEND_ERROR.
func isNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"dial tcp",
		"no route to host",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
