package ports

import "context"

// MapTokenStore holds the map-provider access token the dashboard needs to
// render tiles. It replaces the browser-local storage value of the original
// UI; an absent token gates map rendering, never the fleet store itself.
type MapTokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}
