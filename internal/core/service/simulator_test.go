package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

type tickCountingStore struct {
	ticks     int
	lastDelta float64
}

func (s *tickCountingStore) Reconcile(context.Context, domain.Update) error { return nil }
func (s *tickCountingStore) Snapshot() []domain.Driver                      { return nil }
func (s *tickCountingStore) Get(string) (domain.Driver, error) {
	return domain.Driver{}, domain.ErrDriverNotFound
}
func (s *tickCountingStore) RouteTrace(string) []domain.Coordinates { return nil }
func (s *tickCountingStore) SimulateMotion(_ context.Context, maxDelta float64) {
	s.ticks++
	s.lastDelta = maxDelta
}

func TestSimulator_TickDrivesStore(t *testing.T) {
	store := &tickCountingStore{}
	sim := NewSimulator(store, 3*time.Second, 0.0005, zerolog.Nop())

	sim.tick()
	sim.tick()

	if store.ticks != 2 {
		t.Fatalf("expected 2 motion ticks, got %d", store.ticks)
	}
	if store.lastDelta != 0.0005 {
		t.Errorf("tick must pass the configured delta, got %v", store.lastDelta)
	}
}

func TestSimulator_SuspendBlocksTicks(t *testing.T) {
	store := &tickCountingStore{}
	sim := NewSimulator(store, 3*time.Second, 0.0005, zerolog.Nop())

	sim.Suspend()
	sim.tick()
	if store.ticks != 0 {
		t.Error("suspended simulator must not perturb the store")
	}

	sim.Resume()
	sim.tick()
	if store.ticks != 1 {
		t.Error("resumed simulator must tick again")
	}
}

func TestSimulator_Defaults(t *testing.T) {
	store := &tickCountingStore{}
	sim := NewSimulator(store, 0, 0, zerolog.Nop())

	if sim.interval != 3*time.Second {
		t.Errorf("default interval should be 3s, got %v", sim.interval)
	}
	if sim.maxDelta != 0.0005 {
		t.Errorf("default delta should be 0.0005, got %v", sim.maxDelta)
	}
}

func TestSeedDemo(t *testing.T) {
	svc, _, _, _ := newFleet(t)

	if err := SeedDemo(context.Background(), svc); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 demo drivers, got %d", len(snap))
	}
	if snap[0].ID != "1" || snap[0].Name == "" {
		t.Errorf("demo seed must preserve list order, got %+v", snap[0])
	}
	if snap[0].CurrentDelivery == nil {
		t.Error("first demo driver should carry a delivery")
	}
}
