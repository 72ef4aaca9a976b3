/*
scheduler.go - Periodic auto-close sweep

PURPOSE:
  Optionally closes sessions left open on an earlier work date without
  waiting for the employee to come back. Each tick runs the same
  reconciliation as ListOpenSession for every employee, as the system
  actor.

DESIGN:
  - Off unless attendance.sweep_interval is positive
  - Runs a background goroutine at that interval
  - Runs once immediately on start
  - Errors are logged and the next tick tries again

USAGE:
  sweeper := NewSessionSweeper(attendanceService, logger, cfg.Attendance.SweepInterval)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - sessions.go: CloseStaleSessions endpoint (manual sweep)
  - attendance/service.go: ListOpenSession, CloseStaleSessions
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/generic"
)

// SessionSweeper periodically auto-closes stale sessions.
type SessionSweeper struct {
	Attendance    *attendance.Service
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSessionSweeper builds a sweeper that is enabled only for a positive
// interval.
func NewSessionSweeper(svc *attendance.Service, logger *zap.Logger, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		Attendance:    svc,
		Logger:        logger,
		CheckInterval: interval,
		Enabled:       interval > 0,
	}
}

// Start begins sweeping in the background.
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.Logger.Info("session sweeper disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Logger.Info("session sweeper started", zap.Duration("interval", s.CheckInterval))
}

// Stop waits for an in-flight sweep to finish.
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("session sweeper stopped")
}

// Running reports whether the background loop is active.
func (s *SessionSweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

func (s *SessionSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow()
	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep synchronously and returns how many sessions
// were closed.
func (s *SessionSweeper) RunNow() int {
	timeout := s.CheckInterval
	if timeout < time.Minute {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := s.Attendance.CloseStaleSessions(ctx, generic.SystemActor)
	if err != nil {
		s.Logger.Error("session sweep failed", zap.Error(err))
		return n
	}
	if n > 0 {
		s.Logger.Info("session sweep closed sessions", zap.Int("closed", n))
	}
	return n
}
