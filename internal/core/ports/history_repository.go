package ports

import (
	"context"
	"time"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

// LocationRecord is one applied position update, persisted for audit and
// route-history queries.
type LocationRecord struct {
	DriverID   string
	Location   domain.Coordinates
	Source     string
	RecordedAt time.Time
}

// HistoryRepository is the append-only audit trail of applied location
// updates. Writes are best-effort: the store treats failures as non-fatal.
type HistoryRepository interface {
	RecordLocation(ctx context.Context, rec LocationRecord) error

	// TrackForDriver returns the driver's most recent records, newest
	// first, capped at limit.
	TrackForDriver(ctx context.Context, driverID string, limit int64) ([]LocationRecord, error)
}
