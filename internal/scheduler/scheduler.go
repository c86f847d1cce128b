// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
)

// Expirer cancels stale rent requests.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner.  Runs of the same job never overlap.
type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	logger  echo.Logger
	timeout time.Duration
}

// New prepares a scheduler that runs the expiry job on spec, for
// example "@every 1m" or "0 */5 * * * *".
func New(spec string, expirer Expirer, logger echo.Logger) (*Scheduler, error) {
	cl := cron.PrintfLogger(logger)
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		expirer: expirer,
		logger:  logger,
		timeout: 30 * time.Second,
	}
	if _, err := s.cron.AddFunc(spec, s.expireStale); err != nil {
		return nil, fmt.Errorf("expiry schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("starting rent request expiry scheduler")
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) expireStale() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		s.logger.Errorf("expire stale rent requests: %v", err)
	}
}
