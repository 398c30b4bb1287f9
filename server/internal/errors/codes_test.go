package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/personaflow/plugin/ai/agent"
	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"invalid request", fmt.Errorf("%w: utterance is empty", agent.ErrInvalidRequest), ErrCodeInvalidArgument, http.StatusBadRequest},
		{"invalid recollection", fmt.Errorf("wrap: %w", recollection.ErrInvalidRecollection), ErrCodeInvalidArgument, http.StatusBadRequest},
		{"persona missing", fmt.Errorf("load persona x: %w", persona.ErrNotFound), ErrCodePersonaNotFound, http.StatusNotFound},
		{"recollection id taken", fmt.Errorf("%w: r1", recollection.ErrDuplicateID), ErrCodeRecollectionExists, http.StatusConflict},
		{"recollection missing", recollection.ErrNotFound, ErrCodeRecollectionNotFound, http.StatusNotFound},
		{"backend unreachable", &generation.Error{Kind: generation.FailureUnreachable, Purpose: "classify"}, ErrCodeLLMUnavailable, http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("turn: %w", context.DeadlineExceeded), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, ErrCodeContextCanceled, 499},
		{"unknown", fmt.Errorf("boom"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aiErr := FromError(tt.err)
			require.NotNil(t, aiErr)
			assert.Equal(t, tt.code, aiErr.Code)
			assert.Equal(t, tt.status, aiErr.HTTPStatus())
			assert.ErrorIs(t, aiErr, tt.err)
		})
	}
}

func TestFromErrorKeepsAIError(t *testing.T) {
	orig := RateLimitExceeded("slow down")
	wrapped := fmt.Errorf("middleware: %w", orig)

	assert.Same(t, orig, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}

func TestCodeHelpers(t *testing.T) {
	err := fmt.Errorf("outer: %w", PersonaNotFound("p1").WithContext("persona_id", "p1"))

	assert.True(t, IsCode(err, ErrCodePersonaNotFound))
	assert.False(t, IsCode(err, ErrCodeTimeout))
	assert.Equal(t, ErrCodePersonaNotFound, GetCodeFromError(err, ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, GetCodeFromError(fmt.Errorf("plain"), ErrCodeInternal))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "[INVALID_ARGUMENT] message is required", InvalidArgument("message is required").Error())
	assert.Equal(t, "[STORE_UNAVAILABLE] recollection store failed: disk full",
		StoreUnavailable(fmt.Errorf("disk full")).Error())
}
