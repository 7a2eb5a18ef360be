// Package queue funnels decoded feed updates into the store through a
// single consumer, so updates apply one at a time in arrival order.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/api/metrics"
	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

const defaultCapacity = 1024

// ErrQueueFull is returned when the buffer is at capacity. The update is
// dropped, never blocked on.
var ErrQueueFull = errors.New("ingest queue full")

type Ingest struct {
	store ports.FleetService
	log   zerolog.Logger
	ch    chan domain.Update

	stopOnce sync.Once
	stopped  chan struct{}
	drained  chan struct{}
}

func NewIngest(store ports.FleetService, capacity int, log zerolog.Logger) *Ingest {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Ingest{
		store:   store,
		log:     log.With().Str("component", "ingest").Logger(),
		ch:      make(chan domain.Update, capacity),
		stopped: make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// Start launches the consumer. Call it once.
func (q *Ingest) Start(ctx context.Context) {
	go q.consume(ctx)
}

// Enqueue hands an update to the consumer. It never blocks; when the buffer
// is full the update is dropped and ErrQueueFull returned.
func (q *Ingest) Enqueue(u domain.Update) error {
	select {
	case q.ch <- u:
		metrics.IngestQueueDepth.Inc()
		return nil
	default:
		metrics.IngestDroppedTotal.Inc()
		return ErrQueueFull
	}
}

// Stop ends the consumer after it finishes the update in flight.
func (q *Ingest) Stop() {
	q.stopOnce.Do(func() { close(q.stopped) })
	<-q.drained
}

func (q *Ingest) consume(ctx context.Context) {
	defer close(q.drained)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopped:
			return
		case u := <-q.ch:
			metrics.IngestQueueDepth.Dec()
			if err := q.store.Reconcile(ctx, u); err != nil {
				q.log.Warn().Err(err).Str("kind", u.Kind()).Msg("update rejected")
			}
		}
	}
}
