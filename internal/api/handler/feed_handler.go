package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// FeedHandler exposes the upstream feed state and the manual reconnect
// escape hatch for when the retry budget is exhausted.
type FeedHandler struct {
	status    func() string
	reconnect func()
}

func NewFeedHandler(status func() string, reconnect func()) *FeedHandler {
	return &FeedHandler{status: status, reconnect: reconnect}
}

type feedStatusResponse struct {
	Status string `json:"status"`
}

// Status reports the current feed connection state.
func (h *FeedHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, feedStatusResponse{Status: h.status()})
}

// Reconnect resets the retry budget and dials again.
func (h *FeedHandler) Reconnect(c echo.Context) error {
	if h.reconnect == nil {
		return echo.NewHTTPError(http.StatusConflict, "no upstream feed configured")
	}
	h.reconnect()
	return c.JSON(http.StatusAccepted, feedStatusResponse{Status: h.status()})
}
