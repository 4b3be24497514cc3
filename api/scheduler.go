/*
scheduler.go - Active-flag refresh scheduler

PURPOSE:
  The cap period containing "today" carries the active flag, and which
  period that is changes as the calendar advances - not only when the
  timeline is edited. This scheduler periodically re-runs
  SetActiveFlags so the flags stay correct without any admin action.

USAGE:
  scheduler := NewActiveFlagScheduler(timeline, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - billing/timeline.go: SetActiveFlags
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lohnwerk/minijob-engine/billing"
)

// ActiveFlagScheduler periodically refreshes cap period active flags.
type ActiveFlagScheduler struct {
	Timeline      *billing.Timeline
	CheckInterval time.Duration
	Log           *zap.SugaredLogger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewActiveFlagScheduler(timeline *billing.Timeline, log *zap.SugaredLogger) *ActiveFlagScheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ActiveFlagScheduler{
		Timeline:      timeline,
		CheckInterval: 1 * time.Hour,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *ActiveFlagScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Log.Infow("active-flag scheduler started", "interval", s.CheckInterval)
}

// Stop stops the scheduler.
func (s *ActiveFlagScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("active-flag scheduler stopped")
	}
}

func (s *ActiveFlagScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.refresh()

	for {
		select {
		case <-s.ticker.C:
			s.refresh()
		case <-s.stop:
			return
		}
	}
}

func (s *ActiveFlagScheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Timeline.SetActiveFlags(ctx, billing.Today()); err != nil {
		s.Log.Errorw("active-flag refresh failed", "error", err)
	}
}

// RunNow triggers an immediate refresh (for testing/admin).
func (s *ActiveFlagScheduler) RunNow() {
	s.refresh()
}
