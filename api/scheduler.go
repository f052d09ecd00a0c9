/*
scheduler.go - Periodic daily-debit runner

PURPOSE:
  Runs the daily-debit pass on a fixed interval so active ads keep
  getting charged without an operator calling the admin tick endpoint.

BEHAVIOR:
  - Runs one pass immediately on Start, then on every tick
  - Each pass is independent; a failed pass is logged, not fatal
  - Stop blocks until any in-flight pass finishes

SEE ALSO:
  - ads/service.go: RunDailyDebits
  - cmd/server/main.go: Wiring and interval configuration
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/adboost/ads"
)

// DailyDebitScheduler charges active ads on a fixed interval.
type DailyDebitScheduler struct {
	ads      *ads.Service
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewDailyDebitScheduler creates a scheduler. It does not start it.
func NewDailyDebitScheduler(svc *ads.Service, interval time.Duration, log *zap.Logger) *DailyDebitScheduler {
	return &DailyDebitScheduler{
		ads:      svc,
		interval: interval,
		log:      log,
	}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (s *DailyDebitScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go s.loop()

	s.log.Info("daily debit scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the loop and waits for any in-flight pass to finish.
func (s *DailyDebitScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("daily debit scheduler stopped")
}

func (s *DailyDebitScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce()
	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stop:
			return
		}
	}
}

func (s *DailyDebitScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := s.ads.RunDailyDebits(ctx)
	if err != nil {
		s.log.Error("daily debit pass failed", zap.Error(err))
		return
	}
	if report.Charged > 0 || report.Paused > 0 || report.Ended > 0 {
		s.log.Info("daily debit pass complete",
			zap.Int("charged", report.Charged),
			zap.Int("paused", report.Paused),
			zap.Int("ended", report.Ended))
	}
}
