package ports

import (
	"context"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

// FleetService is the in-memory store of live driver state. All mutation
// flows through Reconcile and SimulateMotion; both are serialized so no two
// reconciliations for the same driver ever interleave.
type FleetService interface {
	// Reconcile merges one incoming update into the store. A structurally
	// invalid update leaves the store untouched and returns an error
	// wrapping domain.ErrInvalidUpdate.
	Reconcile(ctx context.Context, update domain.Update) error

	// Snapshot returns the current drivers in insertion order.
	Snapshot() []domain.Driver

	// Get returns the driver with the given id, or domain.ErrDriverNotFound.
	Get(id string) (domain.Driver, error)

	// SimulateMotion perturbs every active driver's position by a random
	// delta of at most maxDelta degrees per axis, preserving PrevLocation.
	SimulateMotion(ctx context.Context, maxDelta float64)

	// RouteTrace returns the subsampled path trace recorded while
	// animating the given driver, oldest point first.
	RouteTrace(id string) []domain.Coordinates
}
