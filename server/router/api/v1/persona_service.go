package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// idLister is implemented by sources that can enumerate their personas.
type idLister interface {
	IDs() []string
}

// ListPersonasResponse lists the known persona ids.
type ListPersonasResponse struct {
	IDs []string `json:"ids"`
}

// ListPersonas returns the persona ids when the source can enumerate them.
// GET /api/v1/personas
func (s *APIV1Service) ListPersonas(c echo.Context) error {
	resp := ListPersonasResponse{IDs: []string{}}
	if lister, ok := s.Personas.(idLister); ok {
		resp.IDs = lister.IDs()
	}
	return c.JSON(http.StatusOK, resp)
}

// GetPersona returns one persona profile.
// GET /api/v1/personas/:id
func (s *APIV1Service) GetPersona(c echo.Context) error {
	p, err := s.Personas.GetPersona(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
