package traffic

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTracker() (*Tracker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker()
	tr.now = clk.Now
	return tr, clk
}

// TestTracker_ErrorRate verifies successes and errors count toward the total while denials do not.
func TestTracker_ErrorRate(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Record(outcomeSuccess)
	tr.Record(outcomeSuccess)
	tr.Record(outcomeError)
	tr.Record(outcomeDenied)

	errs, total := tr.ErrorRate(time.Minute)
	if errs != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errs, total)
	}
	if got := tr.Count(time.Minute, outcomeDenied); got != 1 {
		t.Errorf("Count(denied) = %d, want 1", got)
	}
}

// TestTracker_WindowAndPrune verifies events outside the window are ignored and
// events past retention are dropped on the next record.
func TestTracker_WindowAndPrune(t *testing.T) {
	tr, clk := newTestTracker()
	tr.Record(outcomeError)
	clk.t = clk.t.Add(2 * time.Minute)
	tr.Record(outcomeSuccess)

	if errs, total := tr.ErrorRate(time.Minute); errs != 0 || total != 1 {
		t.Errorf("ErrorRate(1m) = (%d, %d), want (0, 1)", errs, total)
	}
	if errs, total := tr.ErrorRate(5 * time.Minute); errs != 1 || total != 2 {
		t.Errorf("ErrorRate(5m) = (%d, %d), want (1, 2)", errs, total)
	}

	clk.t = clk.t.Add(4 * time.Minute)
	tr.Record(outcomeSuccess)
	if len(tr.events) != 2 {
		t.Errorf("events after prune = %d, want 2", len(tr.events))
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	Reset()
	defer Reset()
	RecordSuccess()
	RecordError()
	RecordDenied()
	if errs, total := ErrorRate(time.Minute); errs != 1 || total != 2 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 2)", errs, total)
	}
	if DenialCount(time.Minute) != 1 {
		t.Errorf("DenialCount() = %d, want 1", DenialCount(time.Minute))
	}
}
