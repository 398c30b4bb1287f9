package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	assert.True(t, rl.Allow("p1"))
	assert.True(t, rl.Allow("p1"))
	assert.False(t, rl.Allow("p1"), "burst exhausted")
	assert.True(t, rl.Allow("p2"), "keys are independent")
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, DefaultBurst, rl.burst)
	assert.InDelta(t, DefaultRequestsPerSecond, float64(rl.rps), 1e-9)
}

func TestRateLimiterSweepsRefilledKeys(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 1000; i++ {
		require.True(t, rl.Allow(fmt.Sprintf("old-%d", i)))
	}
	assert.Equal(t, 1000, rl.Len())

	clock = clock.Add(2 * time.Second)
	require.True(t, rl.Allow("hot"))
	for i := 0; i < 99; i++ {
		require.True(t, rl.Allow(fmt.Sprintf("new-%d", i)))
	}

	assert.Equal(t, 100, rl.Len(), "refilled buckets are dropped")
	assert.False(t, rl.Allow("hot"), "active buckets keep their state")
}

func TestPerParamMiddleware(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(0.001, 1)
	e.POST("/personas/:id/chat", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, rl.PerParam("id", nil))

	do := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/personas/"+id+"/chat", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("teacher").Code)

	rec := do("teacher")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])

	assert.Equal(t, http.StatusNoContent, do("farmer").Code)
}

func TestPerParamSkipsUnknownKeys(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(0.001, 1)
	known := func(_ echo.Context, id string) bool { return id == "teacher" }
	e.POST("/personas/:id/chat", func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}, rl.PerParam("id", known))

	for i := 0; i < 500; i++ {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/personas/nobody-%d/chat", i), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Zero(t, rl.Len())
}
