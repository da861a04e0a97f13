package identity

import (
	"net/http"

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
	// Public; listed in auth.AuthSkipper.
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.GET("/auth/me", h.Me)
	api.PUT("/auth/profile", h.UpdateProfile)

	api.GET("/doctors", h.ListDoctors)
	// Admins are rejected by the service: availability belongs to a doctor.
	api.PUT("/doctors/availability", h.UpdateAvailability)
	api.GET("/doctors/profile", h.GetDoctorProfile, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}
	u, err := h.svc.GetUser(c.Request().Context(), caller.ID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}
	var upd ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), caller.ID, upd)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	cards, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cards)
}

func (h *Handler) UpdateAvailability(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}
	var upd AvailabilityUpdate
	if err := c.Bind(&upd); err != nil {
		return apperr.ToHTTP(apperr.Validation("invalid request body"))
	}
	d, err := h.svc.UpdateAvailability(c.Request().Context(), caller, upd.Availability)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDoctorProfile(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return apperr.ToHTTP(apperr.Unauthorized("authentication required"))
	}
	d, err := h.svc.GetDoctorProfile(c.Request().Context(), caller.ID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
