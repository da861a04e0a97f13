package document

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medical-records/documents", h.List)
	api.POST("/medical-records/upload", h.Upload)
	api.DELETE("/medical-records/documents/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}
	items, err := h.svc.List(c.Request().Context(), caller.ID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Upload accepts either a multipart file with a title or a JSON
// {title, url} link.
func (h *Handler) Upload(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}

	var (
		items []*Document
		err   error
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			return apperr.ToHTTP(apperr.Validation("No file uploaded"))
		}
		items, err = h.svc.AddFile(c.Request().Context(), caller.ID, c.FormValue("title"), fh)
	} else {
		var req LinkRequest
		if berr := c.Bind(&req); berr != nil {
			return apperr.ToHTTP(apperr.Validation("invalid request body"))
		}
		items, err = h.svc.AddLink(c.Request().Context(), caller.ID, req)
	}
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Delete(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid id"))
	}
	items, err := h.svc.Delete(c.Request().Context(), caller.ID, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
