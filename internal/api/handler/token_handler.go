package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

// TokenHandler manages the shared map-provider access token.
type TokenHandler struct {
	store ports.MapTokenStore
}

func NewTokenHandler(store ports.MapTokenStore) *TokenHandler {
	return &TokenHandler{store: store}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type setTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// Get returns the stored token; an empty token means the map stays unrendered
// until an admin provides one.
func (h *TokenHandler) Get(c echo.Context) error {
	token, err := h.store.Token(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Put stores a new token.
func (h *TokenHandler) Put(c echo.Context) error {
	var req setTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.SetToken(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
