package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/personaflow/internal/observability"
	"github.com/hrygo/personaflow/plugin/ai/agent"
	apierrors "github.com/hrygo/personaflow/server/internal/errors"
)

// MIMEApplicationNDJSON is the content type of the chat event stream.
const MIMEApplicationNDJSON = "application/x-ndjson"

// ChatRequest is the body of a chat call. History is owned by the caller.
type ChatRequest struct {
	Message string       `json:"message"`
	History []agent.Turn `json:"history"`
}

// Chat runs one turn and streams its events as newline-delimited JSON.
// POST /api/v1/personas/:id/chat
//
// Failures before the first event are answered with a JSON error and a
// matching status; once streaming has begun the status is already 200.
func (s *APIV1Service) Chat(c echo.Context) error {
	personaID := c.Param("id")

	var body ChatRequest
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, apierrors.InvalidArgument("malformed chat request"))
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	reqCtx := observability.NewRequestContextWithID(s.Logger, requestID, personaID)
	ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)

	resp := c.Response()
	enc := json.NewEncoder(resp)
	err := s.Orchestrator.Respond(ctx, &agent.Request{
		PersonaID: personaID,
		Utterance: body.Message,
		History:   body.History,
	}, func(event *agent.Event) error {
		if !resp.Committed {
			resp.Header().Set(echo.HeaderContentType, MIMEApplicationNDJSON)
			resp.Header().Set("Cache-Control", "no-cache")
			resp.Header().Set("X-Accel-Buffering", "no")
			resp.WriteHeader(http.StatusOK)
		}
		if err := enc.Encode(event); err != nil {
			return err
		}
		resp.Flush()
		return nil
	})
	if err == nil {
		return nil
	}
	if resp.Committed {
		// The client most likely went away mid-turn.
		reqCtx.Warn("Chat stream aborted", slog.String("error", err.Error()))
		return nil
	}
	return s.writeError(c, err)
}
