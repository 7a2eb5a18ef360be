package service

import (
	"sync"
	"time"
)

// FrameScheduler drives animation state machines one callback per rendered
// frame. Production uses TickerScheduler; tests substitute a manually
// stepped implementation so no real timers are needed.
type FrameScheduler interface {
	// Start invokes step once per frame until step returns false or the
	// returned stop function is called. stop is idempotent.
	Start(step func(now time.Time) bool) (stop func())
}

// TickerScheduler emits frames on a fixed wall-clock interval, one
// goroutine per running animation.
type TickerScheduler struct {
	// Interval between frames. Defaults to 16ms (~60 fps).
	Interval time.Duration
}

func (s TickerScheduler) Start(step func(now time.Time) bool) func() {
	interval := s.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				if !step(now) {
					return
				}
			}
		}
	}()

	return stop
}
