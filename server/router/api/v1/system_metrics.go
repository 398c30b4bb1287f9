package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/personaflow/internal/observability"
)

// MetricsOverviewResponse represents the overview response of orchestrator metrics
type MetricsOverviewResponse struct {
	*observability.MetricsSnapshot
	SuccessRate float64 `json:"success_rate"`
}

// GetMetricsOverview returns the process-wide turn and stage counters
// GET /api/v1/system/metrics
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snapshot := s.Metrics.Snapshot()
	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		MetricsSnapshot: snapshot,
		SuccessRate:     snapshot.SuccessRate(),
	})
}
