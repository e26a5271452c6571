package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingTicker struct {
	calls atomic.Int32
	err   error
}

func (c *countingTicker) RadarTick(ctx context.Context) error {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("tick without deadline")
	}
	return c.err
}

func TestScheduler_TicksAfterInterval(t *testing.T) {
	ticker := &countingTicker{}
	s := New(ticker, time.Second, 0, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if got := ticker.calls.Load(); got != 0 {
		t.Errorf("calls right after Start = %d, want 0", got)
	}

	deadline := time.Now().Add(3 * time.Second)
	for ticker.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if ticker.calls.Load() == 0 {
		t.Fatal("radar tick never ran")
	}
}

func TestScheduler_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ticker := &countingTicker{err: errors.New("rainviewer down")}
	s := New(ticker, time.Minute, time.Second, zap.New(core))

	s.tick()

	entries := logs.FilterMessage("radar tick failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warn entries, want 1", len(entries))
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(&countingTicker{}, 0, time.Hour, nil)
	if s.interval != DefaultRadarInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultRadarInterval)
	}
	if s.timeout != DefaultRadarInterval {
		t.Errorf("timeout = %v, want clamped to interval", s.timeout)
	}
}

func TestStart_NoTicker(t *testing.T) {
	if err := New(nil, time.Minute, 0, nil).Start(); err == nil {
		t.Error("Start() without ticker succeeded")
	}
}
