package handler

import (
	"time"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

// --- Response types ---

type coordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type deliveryResponse struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	ETA     string `json:"eta"`
}

type driverResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Vehicle         string               `json:"vehicle,omitempty"`
	Status          string               `json:"status"`
	Location        coordinatesResponse  `json:"location"`
	PrevLocation    *coordinatesResponse `json:"prevLocation,omitempty"`
	Phone           string               `json:"phone,omitempty"`
	CurrentDelivery *deliveryResponse    `json:"currentDelivery,omitempty"`
	// LastUpdate is milliseconds since epoch; 0 when never timestamped.
	LastUpdate int64 `json:"lastUpdate,omitempty"`
	Stale      bool  `json:"stale"`
}

type driversResponse struct {
	Drivers []driverResponse `json:"drivers"`
	Count   int              `json:"count"`
}

type historyEntryResponse struct {
	Location   coordinatesResponse `json:"location"`
	Source     string              `json:"source"`
	RecordedAt string              `json:"recordedAt"`
}

type historyResponse struct {
	DriverID string                 `json:"driverId"`
	Records  []historyEntryResponse `json:"records"`
}

// --- Mappers ---

func toDriverResponse(d domain.Driver, now time.Time) driverResponse {
	resp := driverResponse{
		ID:       d.ID,
		Name:     d.Name,
		Vehicle:  d.Vehicle,
		Status:   string(d.Status),
		Location: coordinatesResponse{Lat: d.Location.Lat, Lng: d.Location.Lng},
		Phone:    d.Phone,
		Stale:    d.IsStale(now),
	}
	if d.PrevLocation != nil {
		resp.PrevLocation = &coordinatesResponse{Lat: d.PrevLocation.Lat, Lng: d.PrevLocation.Lng}
	}
	if d.CurrentDelivery != nil {
		resp.CurrentDelivery = &deliveryResponse{
			ID:      d.CurrentDelivery.ID,
			Address: d.CurrentDelivery.Address,
			ETA:     d.CurrentDelivery.ETA,
		}
	}
	if !d.LastUpdate.IsZero() {
		resp.LastUpdate = d.LastUpdate.UnixMilli()
	}
	return resp
}

func toHistoryResponse(driverID string, records []ports.LocationRecord) historyResponse {
	resp := historyResponse{DriverID: driverID, Records: make([]historyEntryResponse, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, historyEntryResponse{
			Location:   coordinatesResponse{Lat: r.Location.Lat, Lng: r.Location.Lng},
			Source:     r.Source,
			RecordedAt: r.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}
