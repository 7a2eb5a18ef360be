package ports

import (
	"time"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

// Animator moves a driver marker smoothly between two positions instead of
// letting it jump. At most one animation is in flight per driver id;
// starting a new one cancels the previous one first.
type Animator interface {
	Animate(driverID string, from, to domain.Coordinates, duration time.Duration)

	// Cancel synchronously stops the driver's in-flight animation, if any.
	// No samples are emitted after Cancel returns.
	Cancel(driverID string)
}

// AnimationSink receives every interpolated sample of a running animation.
// The final sample of an uncancelled run is exactly the target position.
type AnimationSink interface {
	Sample(driverID string, at domain.Coordinates, final bool)
}

// TraceRecorder receives the subsampled route-trace side channel: at most
// one point per 10% of animation progress, plus the final point. The
// sampling is a rate limit, not a contract; consumers must tolerate
// irregular spacing.
type TraceRecorder interface {
	AppendTrace(driverID string, at domain.Coordinates)
}
