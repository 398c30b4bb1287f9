package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/personaflow/plugin/ai/recollection"
	apierrors "github.com/hrygo/personaflow/server/internal/errors"
)

// ListRecollectionsResponse carries a persona's recollections.
type ListRecollectionsResponse struct {
	Recollections []*recollection.Recollection `json:"recollections"`
}

// GenerateRecollectionsRequest selects which kinds to draft; empty means all.
type GenerateRecollectionsRequest struct {
	Kinds []string `json:"kinds"`
}

// ListRecollections lists a persona's recollections, or ranks them against q.
// GET /api/v1/personas/:id/recollections?q=...&limit=3
func (s *APIV1Service) ListRecollections(c echo.Context) error {
	ctx := c.Request().Context()
	personaID := c.Param("id")
	if _, err := s.Personas.GetPersona(ctx, personaID); err != nil {
		return s.writeError(c, err)
	}

	var (
		items []*recollection.Recollection
		err   error
	)
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		limit := 0
		if raw := c.QueryParam("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				return s.writeError(c, apierrors.InvalidArgument("limit must be a non-negative integer"))
			}
		}
		items, err = s.Retriever.Retrieve(ctx, personaID, q, limit)
	} else {
		items, err = s.Recollections.List(ctx, personaID)
	}
	if err != nil {
		return s.writeError(c, apierrors.StoreUnavailable(err))
	}
	if items == nil {
		items = []*recollection.Recollection{}
	}
	return c.JSON(http.StatusOK, ListRecollectionsResponse{Recollections: items})
}

// GetRecollection returns one recollection.
// GET /api/v1/personas/:id/recollections/:rid
func (s *APIV1Service) GetRecollection(c echo.Context) error {
	r, err := s.Recollections.Get(c.Request().Context(), c.Param("id"), c.Param("rid"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// CreateRecollection validates and stores one recollection.
// A client-supplied id that is already taken is a 409.
// POST /api/v1/personas/:id/recollections
func (s *APIV1Service) CreateRecollection(c echo.Context) error {
	ctx := c.Request().Context()
	personaID := c.Param("id")
	if _, err := s.Personas.GetPersona(ctx, personaID); err != nil {
		return s.writeError(c, err)
	}

	var r recollection.Recollection
	if err := c.Bind(&r); err != nil {
		return s.writeError(c, apierrors.InvalidArgument("malformed recollection"))
	}
	id, err := s.Recollections.Insert(ctx, personaID, &r)
	if err != nil {
		return s.writeError(c, err)
	}
	created, err := s.Recollections.Get(ctx, personaID, id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// DeleteRecollection removes one recollection.
// DELETE /api/v1/personas/:id/recollections/:rid
func (s *APIV1Service) DeleteRecollection(c echo.Context) error {
	if err := s.Recollections.Delete(c.Request().Context(), c.Param("id"), c.Param("rid")); err != nil {
		return s.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteRecollections drops a persona's whole recollection space.
// DELETE /api/v1/personas/:id/recollections
func (s *APIV1Service) DeleteRecollections(c echo.Context) error {
	existed, err := s.Recollections.DeleteAll(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.writeError(c, apierrors.StoreUnavailable(err))
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": existed})
}

// GenerateRecollections drafts recollections for a persona and stores the accepted ones.
// POST /api/v1/personas/:id/recollections/generate
func (s *APIV1Service) GenerateRecollections(c echo.Context) error {
	if s.Author == nil {
		return c.JSON(http.StatusServiceUnavailable,
			apierrors.Wrap(nil, apierrors.ErrCodeLLMUnavailable, "recollection authoring is not configured"))
	}
	ctx := c.Request().Context()
	p, err := s.Personas.GetPersona(ctx, c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}

	var body GenerateRecollectionsRequest
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, apierrors.InvalidArgument("malformed generate request"))
	}
	kinds := make([]recollection.Kind, 0, len(body.Kinds))
	for _, raw := range body.Kinds {
		kind := recollection.Kind(strings.ToLower(strings.TrimSpace(raw)))
		if !kind.Known() {
			return s.writeError(c, apierrors.InvalidArgument("unknown recollection kind: "+raw))
		}
		kinds = append(kinds, kind)
	}

	result, err := s.Author.Populate(ctx, p, kinds)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
