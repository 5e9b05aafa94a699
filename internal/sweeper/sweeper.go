// Package sweeper periodically force-submits exam sections whose time ran
// out.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Expirer expires overdue exam attempts and reports how many it touched.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Sweeper runs an Expirer on a fixed interval.
type Sweeper struct {
	scheduler *gocron.Scheduler
	expirer   Expirer
	interval  time.Duration
	log       logrus.FieldLogger
}

func New(expirer Expirer, interval time.Duration, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		expirer:   expirer,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the sweep, running it once immediately. Runs never
// overlap. ctx bounds every run.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.WithField("interval", s.interval).Info("sweeper started")
	return nil
}

// Stop halts the schedule.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// RunOnce performs a single sweep and returns the number of attempts it
// touched.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	n, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		s.log.WithError(err).Error("sweep failed")
	}
	if n > 0 {
		s.log.WithField("attempts", n).Info("expired overdue exam sections")
	}
	return n
}
