package application

import (
	"context"
	"log"
	"time"
)

const defaultRunInterval = time.Minute

// Ticker runs one dispatcher pass.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) error
}

// Scheduler triggers dispatcher passes on a fixed interval.
type Scheduler struct {
	engine   Ticker
	interval time.Duration
	clock    Clock
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(engine Ticker, interval time.Duration, clock Clock, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultRunInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Start runs a pass immediately and then on every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.engine == nil {
		return
	}
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.engine.Tick(ctx, s.clock.Now()); err != nil && ctx.Err() == nil {
		s.logger.Printf("transfer tick error: err=%v", err)
	}
}
