package ports

import (
	"context"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

// AuthService handles operator registration and login.
type AuthService interface {
	Register(ctx context.Context, username, password, role string) (*domain.Operator, error)

	// Login returns a signed JWT and the authenticated operator.
	Login(ctx context.Context, username, password string) (string, *domain.Operator, error)
}
