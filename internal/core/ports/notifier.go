package ports

import "github.com/fleetops/fleet-dashboard/internal/core/domain"

// FleetNotifier publishes store-level events to interested observers
// (dashboard stream clients, metrics).
type FleetNotifier interface {
	// DriverConnected fires exactly once per newly created driver id when
	// a patch references an id the store has never seen.
	DriverConnected(driver domain.Driver)
}
