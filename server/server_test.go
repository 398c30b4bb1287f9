package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/personaflow/internal/profile"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	apiv1 "github.com/hrygo/personaflow/server/router/api/v1"
)

func newTestServer() *Server {
	api := apiv1.NewAPIV1Service(persona.NewStaticSource(), nil, nil, nil, nil)
	return NewServer(&profile.Profile{Mode: "dev", Addr: "127.0.0.1", Port: 0, Version: "test"}, api)
}

func TestHealthz(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Service ready.", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Start(context.Background()))
	defer s.Shutdown(context.Background())

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/personas", s.listener.Addr().String()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ids": []}`, string(body))
}
