package v1

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/personaflow/server/internal/errors"
)

// writeError renders err as an AIError body with its mapped status.
func (s *APIV1Service) writeError(c echo.Context, err error) error {
	aiErr := apierrors.FromError(err)
	status := aiErr.HTTPStatus()
	if status >= 500 {
		s.Logger.Error("API request failed",
			slog.String("path", c.Path()),
			slog.String("error_code", string(aiErr.Code)),
			slog.String("error", err.Error()),
		)
	}
	return c.JSON(status, aiErr)
}
