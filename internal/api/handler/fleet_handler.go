package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/fleetops/fleet-dashboard/internal/core/ports"
	"github.com/fleetops/fleet-dashboard/internal/infrastructure/feed"
	"github.com/fleetops/fleet-dashboard/internal/infrastructure/queue"
)

const defaultHistoryLimit = 50

// FleetHandler serves the driver read endpoints and HTTP update ingestion.
// Submitted updates go through the same single-consumer queue as the live
// feed so they apply in a total order.
type FleetHandler struct {
	fleet   ports.FleetService
	history ports.HistoryRepository
	ingest  *queue.Ingest
	now     func() time.Time
}

func NewFleetHandler(fleet ports.FleetService, history ports.HistoryRepository, ingest *queue.Ingest) *FleetHandler {
	return &FleetHandler{fleet: fleet, history: history, ingest: ingest, now: time.Now}
}

// List returns every tracked driver in insertion order.
func (h *FleetHandler) List(c echo.Context) error {
	now := h.now()
	snap := h.fleet.Snapshot()

	resp := driversResponse{Drivers: make([]driverResponse, 0, len(snap)), Count: len(snap)}
	for _, d := range snap {
		resp.Drivers = append(resp.Drivers, toDriverResponse(d, now))
	}
	return c.JSON(http.StatusOK, resp)
}

// Get returns one driver by id.
func (h *FleetHandler) Get(c echo.Context) error {
	d, err := h.fleet.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDriverResponse(d, h.now()))
}

// Route returns the driver's animated path trace as a GeoJSON Feature.
func (h *FleetHandler) Route(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.fleet.Get(id); err != nil {
		return err
	}

	trace := h.fleet.RouteTrace(id)
	line := make(orb.LineString, 0, len(trace))
	for _, p := range trace {
		line = append(line, orb.Point{p.Lng, p.Lat})
	}

	feature := geojson.NewFeature(line)
	feature.Properties["driverId"] = id
	feature.Properties["points"] = len(line)
	return c.JSON(http.StatusOK, feature)
}

// History returns the driver's persisted location records, newest first.
func (h *FleetHandler) History(c echo.Context) error {
	id := c.Param("id")

	limit := int64(defaultHistoryLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	records, err := h.history.TrackForDriver(c.Request().Context(), id, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toHistoryResponse(id, records))
}

// SubmitUpdate accepts a feed-shaped update over HTTP and enqueues it behind
// whatever the live feed has already delivered.
func (h *FleetHandler) SubmitUpdate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	upd, err := feed.DecodeMessage(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.ingest.Enqueue(upd); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "ingest queue full")
		}
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}
