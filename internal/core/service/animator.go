package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/api/metrics"
	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

// DefaultAnimationDuration is used when a caller passes a non-positive
// duration.
const DefaultAnimationDuration = 3 * time.Second

// Animator interpolates marker positions between a driver's previous and
// new coordinates. Each running animation is an explicit state machine
// (start, from, to, duration, cancelled) advanced by the injected
// FrameScheduler; there is no polling on fixed timers and no shared
// mutable closure state.
type Animator struct {
	sched   FrameScheduler
	samples ports.AnimationSink
	trace   ports.TraceRecorder
	log     zerolog.Logger

	mu     sync.Mutex
	active map[string]*animation

	now func() time.Time
}

type animation struct {
	driverID  string
	from, to  domain.Coordinates
	start     time.Time
	duration  time.Duration
	traceMark int // highest progress decile already sent to the trace
	cancelled bool
	stop      func()
}

// NewAnimator wires the scheduler and the two output channels: samples
// receives every frame, trace the subsampled route points. trace may be
// nil when route drawing is disabled.
func NewAnimator(sched FrameScheduler, samples ports.AnimationSink, trace ports.TraceRecorder, log zerolog.Logger) *Animator {
	return &Animator{
		sched:   sched,
		samples: samples,
		trace:   trace,
		log:     log,
		active:  make(map[string]*animation),
		now:     time.Now,
	}
}

// SetTraceRecorder wires the trace sink after construction, for when the
// recorder itself depends on this animator. Call it before any animation
// starts.
func (a *Animator) SetTraceRecorder(rec ports.TraceRecorder) {
	a.trace = rec
}

// Animate starts a run from from to to over duration. A run already in
// flight for the same driver id is cancelled first, so at most one
// animation per driver is ever active.
func (a *Animator) Animate(driverID string, from, to domain.Coordinates, duration time.Duration) {
	if duration <= 0 {
		duration = DefaultAnimationDuration
	}

	a.mu.Lock()
	if prev := a.active[driverID]; prev != nil {
		prev.cancelled = true
		if prev.stop != nil {
			prev.stop()
		}
	}
	anim := &animation{
		driverID:  driverID,
		from:      from,
		to:        to,
		start:     a.now(),
		duration:  duration,
		traceMark: -1,
	}
	a.active[driverID] = anim
	anim.stop = a.sched.Start(func(now time.Time) bool {
		return a.step(anim, now)
	})
	metrics.AnimationsActive.Set(float64(len(a.active)))
	a.mu.Unlock()
}

// Cancel synchronously stops the driver's in-flight animation. Once Cancel
// returns no further samples for that run can be observed.
func (a *Animator) Cancel(driverID string) {
	a.mu.Lock()
	if anim := a.active[driverID]; anim != nil {
		anim.cancelled = true
		if anim.stop != nil {
			anim.stop()
		}
		delete(a.active, driverID)
		metrics.AnimationsActive.Set(float64(len(a.active)))
	}
	a.mu.Unlock()
}

// ActiveCount returns the number of animations currently in flight.
func (a *Animator) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

// step advances one animation by one frame. It returns false when the run
// is finished or cancelled, which stops the scheduler. Samples are emitted
// under the lock so that Cancel's synchronous guarantee holds.
func (a *Animator) step(anim *animation, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if anim.cancelled {
		return false
	}

	t := float64(now.Sub(anim.start)) / float64(anim.duration)
	final := t >= 1

	var at domain.Coordinates
	switch {
	case final:
		// The last sample is the target itself: no floating-point residual.
		at = anim.to
	case t <= 0:
		at = anim.from
	default:
		e := eased(t)
		at = domain.Coordinates{
			Lat: anim.from.Lat + (anim.to.Lat-anim.from.Lat)*e,
			Lng: anim.from.Lng + (anim.to.Lng-anim.from.Lng)*e,
		}
	}

	decile := int(t * 10)
	if decile > 10 {
		decile = 10
	}
	if decile < 0 {
		decile = 0
	}
	emitTrace := final || decile > anim.traceMark
	if emitTrace {
		anim.traceMark = decile
	}

	if final {
		if cur := a.active[anim.driverID]; cur == anim {
			delete(a.active, anim.driverID)
			metrics.AnimationsActive.Set(float64(len(a.active)))
		}
	}

	a.samples.Sample(anim.driverID, at, final)
	if emitTrace && a.trace != nil {
		a.trace.AppendTrace(anim.driverID, at)
	}

	return !final
}

// eased is the ease-in/ease-out curve of the original dashboard:
// 2t² below the midpoint, -1+(4-2t)t above it. eased(0)=0, eased(1)=1.
func eased(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}
