package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

func TestDecodeMessage_DriversList(t *testing.T) {
	raw := []byte(`{
		"type": "drivers_list",
		"drivers": [
			{
				"id": "1",
				"name": "Ahmed Karim",
				"vehicle": "van",
				"status": "active",
				"location": {"lat": 33.3152, "lng": 44.3661},
				"phone": "+964-770-000-0001",
				"currentDelivery": {"id": "d-9", "address": "Karrada, Baghdad", "eta": "14:30"},
				"lastUpdate": 1717243200000
			},
			{
				"id": "2",
				"name": "Sara Hadi",
				"status": "break",
				"location": {"lat": 33.3000, "lng": 44.4000}
			}
		]
	}`)

	upd, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	fs, ok := upd.(domain.FullSync)
	if !ok {
		t.Fatalf("expected FullSync, got %T", upd)
	}
	if len(fs.Drivers) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(fs.Drivers))
	}

	first := fs.Drivers[0]
	if first.ID != "1" || first.Name != "Ahmed Karim" || first.Vehicle != "van" {
		t.Errorf("identity fields mangled: %+v", first)
	}
	if first.Location != (domain.Coordinates{Lat: 33.3152, Lng: 44.3661}) {
		t.Errorf("location mangled: %+v", first.Location)
	}
	if first.CurrentDelivery == nil || first.CurrentDelivery.ID != "d-9" {
		t.Errorf("delivery mangled: %+v", first.CurrentDelivery)
	}
	wantTime := time.UnixMilli(1717243200000).UTC()
	if !first.LastUpdate.Equal(wantTime) {
		t.Errorf("lastUpdate: got %v, want %v", first.LastUpdate, wantTime)
	}

	second := fs.Drivers[1]
	if second.Status != domain.StatusBreak {
		t.Errorf("status mangled: %q", second.Status)
	}
	if !second.LastUpdate.IsZero() {
		t.Errorf("absent lastUpdate must stay zero, got %v", second.LastUpdate)
	}
	if second.CurrentDelivery != nil {
		t.Errorf("absent delivery must stay nil, got %+v", second.CurrentDelivery)
	}
}

func TestDecodeMessage_DriverPatch(t *testing.T) {
	raw := []byte(`{
		"type": "driver_location_update",
		"driver": {"id": "7", "location": {"lat": 33.31, "lng": 44.36}, "status": "active"}
	}`)

	upd, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	p, ok := upd.(domain.DriverPatch)
	if !ok {
		t.Fatalf("expected DriverPatch, got %T", upd)
	}
	if p.ID != "7" {
		t.Errorf("id mangled: %q", p.ID)
	}
	if p.Location == nil || *p.Location != (domain.Coordinates{Lat: 33.31, Lng: 44.36}) {
		t.Errorf("location mangled: %+v", p.Location)
	}
	if p.Status == nil || *p.Status != domain.StatusActive {
		t.Errorf("status mangled: %+v", p.Status)
	}
	// Fields absent on the wire must stay nil so the store keeps prior values.
	if p.Name != nil || p.Vehicle != nil || p.Phone != nil || p.Delivery != nil {
		t.Errorf("absent fields must be nil: %+v", p)
	}
}

func TestDecodeMessage_RawReport(t *testing.T) {
	raw := []byte(`{"type": "driver_location_update", "lat": 33.2, "lng": 44.1, "name": "Courier", "phone": "123"}`)

	upd, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	r, ok := upd.(domain.RawReport)
	if !ok {
		t.Fatalf("expected RawReport, got %T", upd)
	}
	if r.Lat != 33.2 || r.Lng != 44.1 || r.Name != "Courier" || r.Phone != "123" {
		t.Errorf("raw report mangled: %+v", r)
	}
	if r.ID != "" {
		t.Errorf("id must be empty when absent, got %q", r.ID)
	}
}

func TestDecodeMessage_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{{{`, ErrMalformed},
		{"missing type", `{"driver": {"id": "1"}}`, ErrMalformed},
		{"unknown type", `{"type": "driver_deleted", "id": "1"}`, ErrUnknownType},
		{"update without payload", `{"type": "driver_location_update"}`, ErrMalformed},
		{"list without drivers", `{"type": "drivers_list"}`, ErrMalformed},
		{"list with null drivers", `{"type": "drivers_list", "drivers": null}`, ErrMalformed},
		{"list entry without location", `{"type": "drivers_list", "drivers": [{"id": "1"}]}`, ErrMalformed},
		{"list entry without id", `{"type": "drivers_list", "drivers": [{"location": {"lat": 1, "lng": 2}}]}`, ErrMalformed},
		{"latitude out of range", `{"type": "driver_location_update", "lat": 91, "lng": 0}`, ErrMalformed},
		{"bad status", `{"type": "driver_location_update", "driver": {"id": "1", "status": "sleeping"}}`, ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upd, err := DecodeMessage([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Errorf("got (%v, %v), want error %v", upd, err, tc.want)
			}
		})
	}
}

func TestDecodeMessage_EmptyDriversListIsAFullSync(t *testing.T) {
	// An explicit empty array is an authoritative replacement; only a
	// missing or null drivers field is rejected.
	upd, err := DecodeMessage([]byte(`{"type": "drivers_list", "drivers": []}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	fs, ok := upd.(domain.FullSync)
	if !ok {
		t.Fatalf("expected FullSync, got %T", upd)
	}
	if len(fs.Drivers) != 0 {
		t.Errorf("expected no drivers, got %d", len(fs.Drivers))
	}
}

func TestDecodeMessage_PatchWinsOverFlatFields(t *testing.T) {
	// When both shapes are present the nested driver object is authoritative.
	raw := []byte(`{"type": "driver_location_update", "lat": 1, "lng": 2, "driver": {"id": "9"}}`)

	upd, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, ok := upd.(domain.DriverPatch); !ok {
		t.Errorf("expected DriverPatch, got %T", upd)
	}
}
