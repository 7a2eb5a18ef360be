package ports

import (
	"context"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

// AuthRepository persists operator accounts.
type AuthRepository interface {
	Create(ctx context.Context, op *domain.Operator) (*domain.Operator, error)
	FindByUsername(ctx context.Context, username string) (*domain.Operator, error)
}
