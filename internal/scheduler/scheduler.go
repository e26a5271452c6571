// Package scheduler runs the periodic radar refresh.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// DefaultRadarInterval matches how often RainViewer publishes a new frame.
const DefaultRadarInterval = 10 * time.Minute

// RadarTicker is the job target; *dashboard.Service satisfies it.
type RadarTicker interface {
	RadarTick(ctx context.Context) error
}

// Scheduler refreshes the radar layer every interval. The first run waits a
// full interval since startup already loads a frame.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ticker    RadarTicker
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Scheduler. Non-positive interval falls back to
// DefaultRadarInterval; timeout bounds each tick and defaults to the interval.
func New(ticker RadarTicker, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultRadarInterval
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		ticker:    ticker,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the radar job and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if s.ticker == nil {
		return errors.New("scheduler: no radar ticker")
	}
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.tick)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("radar refresh scheduled", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.ticker.RadarTick(ctx); err != nil {
		s.logger.Warn("radar tick failed", zap.Error(err))
	}
}

// Stop cancels future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
