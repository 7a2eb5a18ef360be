package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/api/metrics"
	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

// FleetService is the in-memory source of truth for live driver state.
// Updates from the feed, the HTTP ingestion endpoint, and the motion
// simulator all funnel through Reconcile/SimulateMotion; a single mutex
// serializes them so every reconciliation is atomic with respect to
// observers. Reconcile must not be re-entered from within itself.
type FleetService struct {
	animator     ports.Animator
	notifier     ports.FleetNotifier
	history      ports.HistoryRepository
	animDuration time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	drivers map[string]*domain.Driver
	order   []string // insertion order; new arrivals append

	traceMu sync.Mutex
	traces  map[string]orb.LineString

	anonSeq atomic.Uint64
	now     func() time.Time
}

// NewFleetService returns an empty store. History may be nil when no audit
// sink is configured; write failures are non-fatal either way.
func NewFleetService(
	animator ports.Animator,
	notifier ports.FleetNotifier,
	history ports.HistoryRepository,
	animDuration time.Duration,
	log zerolog.Logger,
) *FleetService {
	if animDuration <= 0 {
		animDuration = 3 * time.Second
	}
	return &FleetService{
		animator:     animator,
		notifier:     notifier,
		history:      history,
		animDuration: animDuration,
		log:          log,
		drivers:      make(map[string]*domain.Driver),
		traces:       make(map[string]orb.LineString),
		now:          time.Now,
	}
}

// Reconcile validates and applies a single update. Only this one update is
// risked per call: validation happens before any mutation, so a rejected
// update leaves the store exactly as it was.
func (s *FleetService) Reconcile(ctx context.Context, update domain.Update) error {
	if update == nil {
		metrics.UpdatesRejectedTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: nil update", domain.ErrInvalidUpdate)
	}
	if err := update.Validate(); err != nil {
		metrics.UpdatesRejectedTotal.WithLabelValues("invalid").Inc()
		return err
	}

	var (
		recs      []ports.LocationRecord
		connected []domain.Driver
		err       error
	)
	switch u := update.(type) {
	case domain.FullSync:
		recs = s.applyFullSync(u)
	case domain.DriverPatch:
		recs, connected, err = s.applyPatch(u, u.Kind())
	case domain.RawReport:
		recs, connected, err = s.applyPatch(s.normalizeRaw(u), u.Kind())
	default:
		metrics.UpdatesRejectedTotal.WithLabelValues("unknown_variant").Inc()
		return fmt.Errorf("%w: unsupported update %T", domain.ErrInvalidUpdate, update)
	}
	if err != nil {
		metrics.UpdatesRejectedTotal.WithLabelValues("invalid").Inc()
		return err
	}

	metrics.UpdatesAppliedTotal.WithLabelValues(update.Kind()).Inc()
	for _, d := range connected {
		metrics.DriversConnectedTotal.Inc()
		if s.notifier != nil {
			s.notifier.DriverConnected(d)
		}
	}
	s.recordHistory(ctx, recs)
	return nil
}

// applyFullSync replaces the whole collection. Drivers present in both the
// old and new sets carry their prior location into PrevLocation (unless the
// new record already has one) and animate towards the new position; drivers
// absent from the new list are removed, their animations cancelled and
// traces dropped.
func (s *FleetService) applyFullSync(u domain.FullSync) []ports.LocationRecord {
	now := s.now()
	recs := make([]ports.LocationRecord, 0, len(u.Drivers))

	s.mu.Lock()
	old := s.drivers
	next := make(map[string]*domain.Driver, len(u.Drivers))
	order := make([]string, 0, len(u.Drivers))

	for _, in := range u.Drivers {
		d := in
		if d.Status == "" {
			d.Status = domain.StatusActive
		}
		if prior, ok := old[d.ID]; ok {
			if d.PrevLocation == nil {
				pl := prior.Location
				d.PrevLocation = &pl
			}
			if prior.Location != d.Location {
				s.animator.Animate(d.ID, prior.Location, d.Location, s.animDuration)
			}
		}
		if d.LastUpdate.IsZero() {
			d.LastUpdate = now
		}
		next[d.ID] = &d
		order = append(order, d.ID)
		recs = append(recs, ports.LocationRecord{
			DriverID: d.ID, Location: d.Location, Source: "full_sync", RecordedAt: now,
		})
	}

	for id := range old {
		if _, keep := next[id]; !keep {
			s.animator.Cancel(id)
			s.dropTrace(id)
		}
	}

	s.drivers, s.order = next, order
	metrics.DriversTracked.Set(float64(len(order)))
	s.mu.Unlock()

	return recs
}

// applyPatch shallow-merges the provided fields over the stored record, or
// creates the driver when the id is unknown. Creation forces status
// "active" and a nil delivery and reports the arrival to the caller.
func (s *FleetService) applyPatch(p domain.DriverPatch, source string) ([]ports.LocationRecord, []domain.Driver, error) {
	now := s.now()

	s.mu.Lock()
	d, ok := s.drivers[p.ID]
	if !ok {
		if p.Location == nil {
			s.mu.Unlock()
			return nil, nil, fmt.Errorf("%w: patch for unknown driver %q carries no location", domain.ErrInvalidUpdate, p.ID)
		}
		nd := &domain.Driver{
			ID:         p.ID,
			Status:     domain.StatusActive,
			Location:   *p.Location,
			LastUpdate: now,
		}
		if p.Name != nil {
			nd.Name = *p.Name
		}
		if p.Vehicle != nil {
			nd.Vehicle = *p.Vehicle
		}
		if p.Phone != nil {
			nd.Phone = *p.Phone
		}
		s.drivers[p.ID] = nd
		s.order = append(s.order, p.ID)
		metrics.DriversTracked.Set(float64(len(s.order)))
		arrival := cloneDriver(nd)
		s.mu.Unlock()

		rec := ports.LocationRecord{DriverID: p.ID, Location: *p.Location, Source: source, RecordedAt: now}
		return []ports.LocationRecord{rec}, []domain.Driver{arrival}, nil
	}

	prev := d.Location
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Vehicle != nil {
		d.Vehicle = *p.Vehicle
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.Delivery != nil {
		del := *p.Delivery
		d.CurrentDelivery = &del
	}
	if p.Location != nil {
		d.Location = *p.Location
	}
	// PrevLocation always reflects the pre-merge position, moved or not.
	pl := prev
	d.PrevLocation = &pl
	d.LastUpdate = now

	var recs []ports.LocationRecord
	if p.Location != nil {
		if *p.Location != prev {
			s.animator.Animate(d.ID, prev, d.Location, s.animDuration)
		}
		recs = append(recs, ports.LocationRecord{
			DriverID: d.ID, Location: d.Location, Source: source, RecordedAt: now,
		})
	}
	s.mu.Unlock()

	return recs, nil, nil
}

// normalizeRaw resolves a raw report to a patch. A missing id is
// synthesized from a process-monotonic counter; name and phone are applied
// only when non-empty so a bare position fix never blanks known identity.
func (s *FleetService) normalizeRaw(r domain.RawReport) domain.DriverPatch {
	id := r.ID
	if id == "" {
		id = fmt.Sprintf("anon-%d", s.anonSeq.Add(1))
	}
	p := domain.DriverPatch{
		ID:       id,
		Location: &domain.Coordinates{Lat: r.Lat, Lng: r.Lng},
	}
	if r.Name != "" {
		name := r.Name
		p.Name = &name
	}
	if r.Phone != "" {
		phone := r.Phone
		p.Phone = &phone
	}
	return p
}

// SimulateMotion nudges every active driver by a bounded random delta per
// axis. Drivers on break or inactive are left untouched.
func (s *FleetService) SimulateMotion(ctx context.Context, maxDelta float64) {
	if maxDelta <= 0 {
		return
	}
	now := s.now()
	var recs []ports.LocationRecord

	s.mu.Lock()
	for _, id := range s.order {
		d := s.drivers[id]
		if d.Status != domain.StatusActive {
			continue
		}
		prev := d.Location
		d.Location = domain.Coordinates{
			Lat: prev.Lat + (rand.Float64()*2-1)*maxDelta,
			Lng: prev.Lng + (rand.Float64()*2-1)*maxDelta,
		}
		pl := prev
		d.PrevLocation = &pl
		d.LastUpdate = now
		s.animator.Animate(id, prev, d.Location, s.animDuration)
		recs = append(recs, ports.LocationRecord{
			DriverID: id, Location: d.Location, Source: "sim_tick", RecordedAt: now,
		})
	}
	s.mu.Unlock()

	if len(recs) > 0 {
		metrics.UpdatesAppliedTotal.WithLabelValues("sim_tick").Inc()
	}
	s.recordHistory(ctx, recs)
}

// Snapshot returns copies of the current drivers in insertion order.
func (s *FleetService) Snapshot() []domain.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Driver, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneDriver(s.drivers[id]))
	}
	return out
}

// Get returns a copy of the driver with the given id.
func (s *FleetService) Get(id string) (domain.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drivers[id]
	if !ok {
		return domain.Driver{}, domain.ErrDriverNotFound
	}
	return cloneDriver(d), nil
}

// AppendTrace implements ports.TraceRecorder: the animator delivers its
// subsampled route points here. Points for ids the store no longer tracks
// are accepted and cleaned up on the next removal; consumers tolerate
// irregular traces.
func (s *FleetService) AppendTrace(driverID string, at domain.Coordinates) {
	s.traceMu.Lock()
	s.traces[driverID] = append(s.traces[driverID], orb.Point{at.Lng, at.Lat})
	s.traceMu.Unlock()
}

// RouteTrace returns the driver's recorded trace, oldest point first.
func (s *FleetService) RouteTrace(id string) []domain.Coordinates {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()

	ls := s.traces[id]
	out := make([]domain.Coordinates, len(ls))
	for i, p := range ls {
		out[i] = domain.Coordinates{Lat: p.Lat(), Lng: p.Lon()}
	}
	return out
}

func (s *FleetService) dropTrace(id string) {
	s.traceMu.Lock()
	delete(s.traces, id)
	s.traceMu.Unlock()
}

// recordHistory persists applied positions to the audit trail. Failures
// are logged and swallowed; history must never block reconciliation.
func (s *FleetService) recordHistory(ctx context.Context, recs []ports.LocationRecord) {
	if s.history == nil {
		return
	}
	for _, rec := range recs {
		if err := s.history.RecordLocation(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("driver_id", rec.DriverID).Msg("failed to record location history")
		}
	}
}

func cloneDriver(d *domain.Driver) domain.Driver {
	out := *d
	if d.PrevLocation != nil {
		pl := *d.PrevLocation
		out.PrevLocation = &pl
	}
	if d.CurrentDelivery != nil {
		del := *d.CurrentDelivery
		out.CurrentDelivery = &del
	}
	return out
}
