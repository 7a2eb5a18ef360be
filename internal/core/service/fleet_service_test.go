package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type animateCall struct {
	driverID string
	from, to domain.Coordinates
}

type stubAnimator struct {
	animated  []animateCall
	cancelled []string
}

func (a *stubAnimator) Animate(driverID string, from, to domain.Coordinates, _ time.Duration) {
	a.animated = append(a.animated, animateCall{driverID: driverID, from: from, to: to})
}

func (a *stubAnimator) Cancel(driverID string) {
	a.cancelled = append(a.cancelled, driverID)
}

type stubNotifier struct {
	connected []domain.Driver
}

func (n *stubNotifier) DriverConnected(d domain.Driver) {
	n.connected = append(n.connected, d)
}

type stubHistory struct {
	recordErr error
	records   []ports.LocationRecord
}

func (h *stubHistory) RecordLocation(_ context.Context, rec ports.LocationRecord) error {
	if h.recordErr != nil {
		return h.recordErr
	}
	h.records = append(h.records, rec)
	return nil
}

func (h *stubHistory) TrackForDriver(_ context.Context, _ string, _ int64) ([]ports.LocationRecord, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newFleet(t *testing.T) (*FleetService, *stubAnimator, *stubNotifier, *stubHistory) {
	t.Helper()
	anim := &stubAnimator{}
	notif := &stubNotifier{}
	hist := &stubHistory{}
	svc := NewFleetService(anim, notif, hist, 3*time.Second, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, anim, notif, hist
}

func seedOne(t *testing.T, svc *FleetService) {
	t.Helper()
	err := svc.Reconcile(context.Background(), domain.FullSync{Drivers: []domain.Driver{
		{ID: "1", Name: "Ahmed Karim", Status: domain.StatusActive,
			Location: domain.Coordinates{Lat: 33.3152, Lng: 44.3661}},
	}})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func locPtr(lat, lng float64) *domain.Coordinates {
	return &domain.Coordinates{Lat: lat, Lng: lng}
}

// ---------------------------------------------------------------------------
// Patch semantics
// ---------------------------------------------------------------------------

func TestFleetService_PatchKnown_MovesPrevLocation(t *testing.T) {
	svc, anim, _, _ := newFleet(t)
	seedOne(t, svc)

	err := svc.Reconcile(context.Background(), domain.DriverPatch{
		ID:       "1",
		Location: locPtr(33.3252, 44.3761),
	})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}

	d, err := svc.Get("1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if d.Location != (domain.Coordinates{Lat: 33.3252, Lng: 44.3761}) {
		t.Errorf("location not applied: %+v", d.Location)
	}
	if d.PrevLocation == nil || *d.PrevLocation != (domain.Coordinates{Lat: 33.3152, Lng: 44.3661}) {
		t.Errorf("prevLocation must hold the pre-merge position, got %+v", d.PrevLocation)
	}
	if !d.LastUpdate.Equal(fixedNow) {
		t.Errorf("lastUpdate not stamped: %v", d.LastUpdate)
	}

	if len(anim.animated) != 1 {
		t.Fatalf("expected one animation, got %d", len(anim.animated))
	}
	if anim.animated[0].from != (domain.Coordinates{Lat: 33.3152, Lng: 44.3661}) ||
		anim.animated[0].to != (domain.Coordinates{Lat: 33.3252, Lng: 44.3761}) {
		t.Errorf("animation endpoints wrong: %+v", anim.animated[0])
	}
}

func TestFleetService_PatchKnown_PartialFieldsOnly(t *testing.T) {
	svc, anim, _, _ := newFleet(t)
	seedOne(t, svc)

	status := domain.StatusBreak
	if err := svc.Reconcile(context.Background(), domain.DriverPatch{ID: "1", Status: &status}); err != nil {
		t.Fatalf("patch failed: %v", err)
	}

	d, _ := svc.Get("1")
	if d.Status != domain.StatusBreak {
		t.Errorf("status not merged: %v", d.Status)
	}
	if d.Name != "Ahmed Karim" {
		t.Errorf("unprovided field must survive the merge, got name %q", d.Name)
	}
	// prevLocation still reflects the pre-merge location even without a move.
	if d.PrevLocation == nil || *d.PrevLocation != d.Location {
		t.Errorf("prevLocation must equal the unchanged location, got %+v", d.PrevLocation)
	}
	if len(anim.animated) != 0 {
		t.Error("no animation should start when the position did not change")
	}
}

func TestFleetService_PatchUnknown_CreatesActiveDriver(t *testing.T) {
	svc, _, notif, _ := newFleet(t)

	name := "Sara Hassan"
	status := domain.StatusBreak
	err := svc.Reconcile(context.Background(), domain.DriverPatch{
		ID:       "42",
		Name:     &name,
		Status:   &status, // ignored on arrival: status is forced active
		Location: locPtr(33.30, 44.36),
		Delivery: &domain.Delivery{ID: "d-9", Address: "x", ETA: "2024-06-01T13:00:00Z"},
	})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}

	d, err := svc.Get("42")
	if err != nil {
		t.Fatalf("driver not created: %v", err)
	}
	if d.Status != domain.StatusActive {
		t.Errorf("new arrival must be forced active, got %v", d.Status)
	}
	if d.CurrentDelivery != nil {
		t.Error("new arrival must have a nil delivery")
	}
	if len(notif.connected) != 1 || notif.connected[0].ID != "42" {
		t.Fatalf("expected exactly one driver-connected notification, got %+v", notif.connected)
	}

	// A second patch for the same id must not re-notify.
	if err := svc.Reconcile(context.Background(), domain.DriverPatch{ID: "42", Location: locPtr(33.31, 44.37)}); err != nil {
		t.Fatalf("second patch failed: %v", err)
	}
	if len(notif.connected) != 1 {
		t.Errorf("driver-connected must fire once per id, got %d", len(notif.connected))
	}
}

func TestFleetService_PatchUnknown_AppendsAtEnd(t *testing.T) {
	svc, _, _, _ := newFleet(t)
	seedOne(t, svc)

	if err := svc.Reconcile(context.Background(), domain.DriverPatch{ID: "9", Location: locPtr(1, 1)}); err != nil {
		t.Fatalf("patch failed: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap) != 2 || snap[0].ID != "1" || snap[1].ID != "9" {
		t.Errorf("new arrivals must append in insertion order, got %v", idsOf(snap))
	}
}

// ---------------------------------------------------------------------------
// Full sync semantics
// ---------------------------------------------------------------------------

func TestFleetService_FullSync_RemovesAbsentCarriesPrev(t *testing.T) {
	svc, anim, _, _ := newFleet(t)
	err := svc.Reconcile(context.Background(), domain.FullSync{Drivers: []domain.Driver{
		{ID: "1", Location: domain.Coordinates{Lat: 33.1, Lng: 44.1}},
		{ID: "2", Location: domain.Coordinates{Lat: 33.2, Lng: 44.2}},
		{ID: "3", Location: domain.Coordinates{Lat: 33.3, Lng: 44.3}},
	}})
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	err = svc.Reconcile(context.Background(), domain.FullSync{Drivers: []domain.Driver{
		{ID: "2", Location: domain.Coordinates{Lat: 33.25, Lng: 44.25}},
	}})
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap) != 1 || snap[0].ID != "2" {
		t.Fatalf("ids absent from a full sync must be removed, got %v", idsOf(snap))
	}
	if snap[0].PrevLocation == nil || *snap[0].PrevLocation != (domain.Coordinates{Lat: 33.2, Lng: 44.2}) {
		t.Errorf("surviving id must carry prior location into prevLocation, got %+v", snap[0].PrevLocation)
	}

	for _, id := range []string{"1", "3"} {
		if !contains(anim.cancelled, id) {
			t.Errorf("removed driver %s must have its animation cancelled", id)
		}
	}
	if svc.RouteTrace("1") != nil && len(svc.RouteTrace("1")) != 0 {
		t.Error("removed driver's trace must be dropped")
	}
}

func TestFleetService_FullSync_RespectsExplicitPrevLocation(t *testing.T) {
	svc, _, _, _ := newFleet(t)
	seedOne(t, svc)

	explicit := domain.Coordinates{Lat: 10, Lng: 10}
	err := svc.Reconcile(context.Background(), domain.FullSync{Drivers: []domain.Driver{
		{ID: "1", Location: domain.Coordinates{Lat: 33.4, Lng: 44.4}, PrevLocation: &explicit},
	}})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	d, _ := svc.Get("1")
	if d.PrevLocation == nil || *d.PrevLocation != explicit {
		t.Errorf("an explicit prevLocation in the new record must win, got %+v", d.PrevLocation)
	}
}

func TestFleetService_UniqueIDsAcrossSequences(t *testing.T) {
	svc, _, _, _ := newFleet(t)
	ctx := context.Background()

	updates := []domain.Update{
		domain.FullSync{Drivers: []domain.Driver{
			{ID: "a", Location: domain.Coordinates{Lat: 1, Lng: 1}},
			{ID: "b", Location: domain.Coordinates{Lat: 2, Lng: 2}},
		}},
		domain.DriverPatch{ID: "a", Location: locPtr(1.1, 1.1)},
		domain.DriverPatch{ID: "c", Location: locPtr(3, 3)},
		domain.RawReport{ID: "b", Lat: 2.1, Lng: 2.1},
		domain.FullSync{Drivers: []domain.Driver{
			{ID: "c", Location: domain.Coordinates{Lat: 3, Lng: 3}},
			{ID: "a", Location: domain.Coordinates{Lat: 1, Lng: 1}},
		}},
		domain.DriverPatch{ID: "a", Location: locPtr(1.2, 1.2)},
	}
	for i, u := range updates {
		if err := svc.Reconcile(ctx, u); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
		seen := map[string]bool{}
		for _, d := range svc.Snapshot() {
			if seen[d.ID] {
				t.Fatalf("duplicate id %q after update %d", d.ID, i)
			}
			seen[d.ID] = true
		}
	}
}

// ---------------------------------------------------------------------------
// Raw reports
// ---------------------------------------------------------------------------

func TestFleetService_RawReport_SynthesizesDistinctIDs(t *testing.T) {
	svc, _, notif, _ := newFleet(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Reconcile(ctx, domain.RawReport{Lat: 33.3, Lng: 44.3, Name: "anon"}); err != nil {
			t.Fatalf("raw report %d failed: %v", i, err)
		}
	}

	snap := svc.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("each id-less raw report must create a distinct driver, got %d", len(snap))
	}
	if len(notif.connected) != 3 {
		t.Errorf("expected 3 arrival notifications, got %d", len(notif.connected))
	}
}

func TestFleetService_RawReport_NeverBlanksIdentity(t *testing.T) {
	svc, _, _, _ := newFleet(t)
	ctx := context.Background()

	if err := svc.Reconcile(ctx, domain.RawReport{ID: "7", Lat: 33.3, Lng: 44.3, Name: "Omar Saleh", Phone: "+964 1"}); err != nil {
		t.Fatalf("first report failed: %v", err)
	}
	// A later bare fix without name/phone must not blank the known identity.
	if err := svc.Reconcile(ctx, domain.RawReport{ID: "7", Lat: 33.31, Lng: 44.31}); err != nil {
		t.Fatalf("second report failed: %v", err)
	}

	d, _ := svc.Get("7")
	if d.Name != "Omar Saleh" || d.Phone != "+964 1" {
		t.Errorf("empty incoming fields must not overwrite, got name=%q phone=%q", d.Name, d.Phone)
	}
	if d.Location != (domain.Coordinates{Lat: 33.31, Lng: 44.31}) {
		t.Errorf("position must still advance, got %+v", d.Location)
	}
}

// ---------------------------------------------------------------------------
// Failure semantics
// ---------------------------------------------------------------------------

func TestFleetService_InvalidUpdate_LeavesStoreUnchanged(t *testing.T) {
	svc, _, _, _ := newFleet(t)
	seedOne(t, svc)
	before := svc.Snapshot()

	bad := []domain.Update{
		domain.DriverPatch{ID: "1", Location: locPtr(400, 0)},
		domain.DriverPatch{},
		domain.FullSync{Drivers: []domain.Driver{
			{ID: "x", Location: domain.Coordinates{Lat: 1, Lng: 1}},
			{ID: "x", Location: domain.Coordinates{Lat: 2, Lng: 2}},
		}},
		domain.RawReport{Lat: -200, Lng: 0},
		nil,
	}
	for i, u := range bad {
		if err := svc.Reconcile(context.Background(), u); !errors.Is(err, domain.ErrInvalidUpdate) {
			t.Errorf("update %d: expected ErrInvalidUpdate, got %v", i, err)
		}
	}

	after := svc.Snapshot()
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("store must be untouched by rejected updates:\nbefore %+v\nafter  %+v", before[0], after[0])
	}
}

func TestFleetService_PatchUnknownWithoutLocation_Rejected(t *testing.T) {
	svc, _, notif, _ := newFleet(t)

	name := "ghost"
	err := svc.Reconcile(context.Background(), domain.DriverPatch{ID: "99", Name: &name})
	if !errors.Is(err, domain.ErrInvalidUpdate) {
		t.Fatalf("expected ErrInvalidUpdate, got %v", err)
	}
	if _, err := svc.Get("99"); !errors.Is(err, domain.ErrDriverNotFound) {
		t.Error("rejected arrival must not be created")
	}
	if len(notif.connected) != 0 {
		t.Error("rejected arrival must not notify")
	}
}

func TestFleetService_HistoryFailureIsNonFatal(t *testing.T) {
	svc, _, _, hist := newFleet(t)
	hist.recordErr = errors.New("mongo unavailable")

	seedOne(t, svc)
	err := svc.Reconcile(context.Background(), domain.DriverPatch{ID: "1", Location: locPtr(33.32, 44.37)})
	if err != nil {
		t.Fatalf("history failure must not fail reconciliation: %v", err)
	}

	d, _ := svc.Get("1")
	if d.Location != (domain.Coordinates{Lat: 33.32, Lng: 44.37}) {
		t.Error("update must still be applied when the audit write fails")
	}
}

// ---------------------------------------------------------------------------
// Simulated motion
// ---------------------------------------------------------------------------

func TestFleetService_SimulateMotion_ActiveOnlyBoundedDelta(t *testing.T) {
	svc, anim, _, _ := newFleet(t)
	err := svc.Reconcile(context.Background(), domain.FullSync{Drivers: []domain.Driver{
		{ID: "1", Status: domain.StatusActive, Location: domain.Coordinates{Lat: 33.3152, Lng: 44.3661}},
		{ID: "2", Status: domain.StatusBreak, Location: domain.Coordinates{Lat: 33.32, Lng: 44.37}},
		{ID: "3", Status: domain.StatusInactive, Location: domain.Coordinates{Lat: 33.33, Lng: 44.38}},
	}})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	const maxDelta = 0.0005
	svc.SimulateMotion(context.Background(), maxDelta)

	active, _ := svc.Get("1")
	if active.PrevLocation == nil || *active.PrevLocation != (domain.Coordinates{Lat: 33.3152, Lng: 44.3661}) {
		t.Errorf("tick must capture prevLocation, got %+v", active.PrevLocation)
	}
	if math.Abs(active.Location.Lat-33.3152) > maxDelta || math.Abs(active.Location.Lng-44.3661) > maxDelta {
		t.Errorf("perturbation exceeds bound: %+v", active.Location)
	}

	for _, id := range []string{"2", "3"} {
		d, _ := svc.Get(id)
		if d.PrevLocation != nil {
			t.Errorf("driver %s not in active status must be untouched by the tick", id)
		}
	}

	if len(anim.animated) != 1 || anim.animated[0].driverID != "1" {
		t.Errorf("only the active driver should animate, got %+v", anim.animated)
	}
}

// ---------------------------------------------------------------------------
// Traces
// ---------------------------------------------------------------------------

func TestFleetService_TraceAppendAndRead(t *testing.T) {
	svc, _, _, _ := newFleet(t)
	seedOne(t, svc)

	svc.AppendTrace("1", domain.Coordinates{Lat: 33.31, Lng: 44.36})
	svc.AppendTrace("1", domain.Coordinates{Lat: 33.32, Lng: 44.37})

	trace := svc.RouteTrace("1")
	if len(trace) != 2 {
		t.Fatalf("expected 2 trace points, got %d", len(trace))
	}
	if trace[0] != (domain.Coordinates{Lat: 33.31, Lng: 44.36}) {
		t.Errorf("trace order must be oldest first, got %+v", trace[0])
	}
	if got := svc.RouteTrace("unknown"); len(got) != 0 {
		t.Errorf("unknown driver must yield an empty trace, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func idsOf(drivers []domain.Driver) []string {
	out := make([]string, len(drivers))
	for i, d := range drivers {
		out[i] = d.ID
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
