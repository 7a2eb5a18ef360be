package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
)

// Simulator generates demo motion: on a fixed schedule it asks the store
// to perturb every active driver by a small random delta. It is suspended
// while a live feed is connected so the two sources never fight over the
// same records.
type Simulator struct {
	store    ports.FleetService
	cron     *cron.Cron
	interval time.Duration
	maxDelta float64
	log      zerolog.Logger

	suspended atomic.Bool
}

func NewSimulator(store ports.FleetService, interval time.Duration, maxDelta float64, log zerolog.Logger) *Simulator {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxDelta <= 0 {
		maxDelta = 0.0005
	}
	return &Simulator{
		store:    store,
		cron:     cron.New(),
		interval: interval,
		maxDelta: maxDelta,
		log:      log,
	}
}

// Start schedules the tick and begins the cron loop.
func (s *Simulator) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		return fmt.Errorf("simulator: schedule tick: %w", err)
	}
	s.cron.Start()
	s.log.Info().Dur("interval", s.interval).Float64("max_delta", s.maxDelta).Msg("motion simulator started")
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (s *Simulator) Stop() {
	<-s.cron.Stop().Done()
}

// Suspend pauses ticks while a live feed is supplying updates.
func (s *Simulator) Suspend() {
	if !s.suspended.Swap(true) {
		s.log.Info().Msg("motion simulator suspended: live feed active")
	}
}

// Resume re-enables ticks after the live feed goes away.
func (s *Simulator) Resume() {
	if s.suspended.Swap(false) {
		s.log.Info().Msg("motion simulator resumed")
	}
}

func (s *Simulator) tick() {
	if s.suspended.Load() {
		return
	}
	s.store.SimulateMotion(context.Background(), s.maxDelta)
}

// SeedDemo loads the demo fleet so the dashboard has something to show
// before any feed or operator input exists.
func SeedDemo(ctx context.Context, store ports.FleetService) error {
	seed := domain.FullSync{Drivers: []domain.Driver{
		{
			ID: "1", Name: "Ahmed Karim", Vehicle: "Van 12", Status: domain.StatusActive,
			Location: domain.Coordinates{Lat: 33.3152, Lng: 44.3661},
			Phone:    "+964 770 000 0001",
			CurrentDelivery: &domain.Delivery{
				ID: "d-1001", Address: "Karrada, Baghdad", ETA: "2024-06-01T12:45:00Z",
			},
		},
		{
			ID: "2", Name: "Sara Hassan", Vehicle: "Bike 4", Status: domain.StatusActive,
			Location: domain.Coordinates{Lat: 33.3201, Lng: 44.3554},
			Phone:    "+964 770 000 0002",
		},
		{
			ID: "3", Name: "Omar Saleh", Vehicle: "Van 7", Status: domain.StatusBreak,
			Location: domain.Coordinates{Lat: 33.3089, Lng: 44.3722},
		},
		{
			ID: "4", Name: "Layla Najm", Vehicle: "Car 2", Status: domain.StatusInactive,
			Location: domain.Coordinates{Lat: 33.3264, Lng: 44.3808},
		},
	}}
	return store.Reconcile(ctx, seed)
}
