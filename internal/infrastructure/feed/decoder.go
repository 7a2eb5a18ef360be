// Package feed connects the dashboard to the upstream driver-location
// websocket and translates its wire messages into store updates.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

// Recognized wire message types.
const (
	msgDriverLocationUpdate = "driver_location_update"
	msgDriversList          = "drivers_list"
)

var ErrMalformed = errors.New("malformed feed message")
var ErrUnknownType = errors.New("unrecognized message type")

var validate = validator.New()

// envelope is the outer wire shape. A driver_location_update carries either
// a nested driver object or the flat translated fields; extra fields are
// ignored.
type envelope struct {
	Type    string          `json:"type"`
	Driver  json.RawMessage `json:"driver"`
	Drivers json.RawMessage `json:"drivers"`

	// Flat translated shape.
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Name  string   `json:"name"`
	Phone string   `json:"phone"`
	ID    string   `json:"id"`
}

type wireCoordinates struct {
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng *float64 `json:"lng" validate:"required,min=-180,max=180"`
}

type wireDelivery struct {
	ID      string `json:"id" validate:"required"`
	Address string `json:"address"`
	ETA     string `json:"eta"`
}

type wireDriver struct {
	ID           string           `json:"id" validate:"required"`
	Name         *string          `json:"name"`
	Vehicle      *string          `json:"vehicle"`
	Status       *string          `json:"status" validate:"omitempty,oneof=active inactive break"`
	Location     *wireCoordinates `json:"location"`
	PrevLocation *wireCoordinates `json:"prevLocation"`
	Phone        *string          `json:"phone"`
	Delivery     *wireDelivery    `json:"currentDelivery"`
	// LastUpdate is milliseconds since epoch; 0 means absent.
	LastUpdate int64 `json:"lastUpdate"`
}

// DecodeMessage parses one raw feed frame into exactly one update variant.
// Anything that matches no variant is rejected here and never reaches the
// store.
func DecodeMessage(raw []byte) (domain.Update, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case msgDriversList:
		return decodeDriversList(env.Drivers)
	case msgDriverLocationUpdate:
		if len(env.Driver) > 0 && string(env.Driver) != "null" {
			return decodeDriverPatch(env.Driver)
		}
		if env.Lat != nil && env.Lng != nil {
			return decodeRawReport(env)
		}
		return nil, fmt.Errorf("%w: location update carries neither a driver object nor a flat position", ErrMalformed)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeDriversList(raw json.RawMessage) (domain.Update, error) {
	// A literal null unmarshals into a nil slice without error, which would
	// read as a full sync of zero drivers and wipe the store. Only an
	// explicit [] may do that.
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: drivers_list without drivers array", ErrMalformed)
	}
	var wires []wireDriver
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("%w: drivers array: %v", ErrMalformed, err)
	}

	drivers := make([]domain.Driver, 0, len(wires))
	for i, w := range wires {
		if err := validate.Struct(w); err != nil {
			return nil, fmt.Errorf("%w: drivers[%d]: %v", ErrMalformed, i, err)
		}
		if w.Location == nil {
			return nil, fmt.Errorf("%w: drivers[%d] missing location", ErrMalformed, i)
		}
		drivers = append(drivers, toDomainDriver(w))
	}
	return domain.FullSync{Drivers: drivers}, nil
}

func decodeDriverPatch(raw json.RawMessage) (domain.Update, error) {
	var w wireDriver
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: driver object: %v", ErrMalformed, err)
	}
	if err := validate.Struct(w); err != nil {
		return nil, fmt.Errorf("%w: driver object: %v", ErrMalformed, err)
	}

	p := domain.DriverPatch{
		ID:      w.ID,
		Name:    w.Name,
		Vehicle: w.Vehicle,
		Phone:   w.Phone,
	}
	if w.Status != nil {
		st := domain.DriverStatus(*w.Status)
		p.Status = &st
	}
	if w.Location != nil {
		p.Location = &domain.Coordinates{Lat: *w.Location.Lat, Lng: *w.Location.Lng}
	}
	if w.Delivery != nil {
		p.Delivery = &domain.Delivery{ID: w.Delivery.ID, Address: w.Delivery.Address, ETA: w.Delivery.ETA}
	}
	return p, nil
}

func decodeRawReport(env envelope) (domain.Update, error) {
	pos := wireCoordinates{Lat: env.Lat, Lng: env.Lng}
	if err := validate.Struct(pos); err != nil {
		return nil, fmt.Errorf("%w: flat position: %v", ErrMalformed, err)
	}
	return domain.RawReport{
		ID:    env.ID,
		Lat:   *env.Lat,
		Lng:   *env.Lng,
		Name:  env.Name,
		Phone: env.Phone,
	}, nil
}

func toDomainDriver(w wireDriver) domain.Driver {
	d := domain.Driver{ID: w.ID}
	if w.Name != nil {
		d.Name = *w.Name
	}
	if w.Vehicle != nil {
		d.Vehicle = *w.Vehicle
	}
	if w.Status != nil {
		d.Status = domain.DriverStatus(*w.Status)
	}
	if w.Location != nil {
		d.Location = domain.Coordinates{Lat: *w.Location.Lat, Lng: *w.Location.Lng}
	}
	if w.PrevLocation != nil {
		d.PrevLocation = &domain.Coordinates{Lat: *w.PrevLocation.Lat, Lng: *w.PrevLocation.Lng}
	}
	if w.Phone != nil {
		d.Phone = *w.Phone
	}
	if w.Delivery != nil {
		d.CurrentDelivery = &domain.Delivery{ID: w.Delivery.ID, Address: w.Delivery.Address, ETA: w.Delivery.ETA}
	}
	if w.LastUpdate > 0 {
		d.LastUpdate = time.UnixMilli(w.LastUpdate).UTC()
	}
	return d
}
