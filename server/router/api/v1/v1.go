package v1

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/personaflow/internal/observability"
	"github.com/hrygo/personaflow/plugin/ai/agent"
	"github.com/hrygo/personaflow/plugin/ai/authoring"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
	"github.com/hrygo/personaflow/plugin/ai/retrieval"
	"github.com/hrygo/personaflow/server/middleware"
)

// APIV1Service serves the persona chat and recollection endpoints.
type APIV1Service struct {
	Personas      persona.Source
	Orchestrator  *agent.Orchestrator
	Recollections recollection.Store
	Retriever     *retrieval.Retriever
	// Author is optional; the generate endpoint answers 503 without it.
	Author  *authoring.Author
	Metrics *observability.Metrics
	Logger  *slog.Logger

	chatLimiter *middleware.RateLimiter
}

// NewAPIV1Service creates the service. chatLimiter may be nil to disable chat rate limiting.
func NewAPIV1Service(personas persona.Source, orchestrator *agent.Orchestrator, recollections recollection.Store, retriever *retrieval.Retriever, chatLimiter *middleware.RateLimiter) *APIV1Service {
	return &APIV1Service{
		Personas:      personas,
		Orchestrator:  orchestrator,
		Recollections: recollections,
		Retriever:     retriever,
		Metrics:       observability.GlobalMetrics(),
		Logger:        slog.Default(),
		chatLimiter:   chatLimiter,
	}
}

// RegisterRoutes mounts the v1 API on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")

	chatMiddleware := []echo.MiddlewareFunc{}
	if s.chatLimiter != nil {
		chatMiddleware = append(chatMiddleware, s.chatLimiter.PerParam("id", s.personaExists))
	}

	g.GET("/personas", s.ListPersonas)
	g.GET("/personas/:id", s.GetPersona)
	g.POST("/personas/:id/chat", s.Chat, chatMiddleware...)

	g.GET("/personas/:id/recollections", s.ListRecollections)
	g.POST("/personas/:id/recollections", s.CreateRecollection)
	g.DELETE("/personas/:id/recollections", s.DeleteRecollections)
	g.POST("/personas/:id/recollections/generate", s.GenerateRecollections)
	g.GET("/personas/:id/recollections/:rid", s.GetRecollection)
	g.DELETE("/personas/:id/recollections/:rid", s.DeleteRecollection)

	g.GET("/system/metrics", s.GetMetricsOverview)
}

// personaExists keeps chat limiters to real personas.
func (s *APIV1Service) personaExists(c echo.Context, id string) bool {
	_, err := s.Personas.GetPersona(c.Request().Context(), id)
	return err == nil
}
