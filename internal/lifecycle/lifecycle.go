// Package lifecycle tracks the process phase reported by the health endpoint.
package lifecycle

import "sync/atomic"

// Phase is the coarse process state.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseServing
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseServing:
		return "serving"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// SetPhase records the current phase. main moves Starting -> Serving once the offline
// worker has activated and Serving -> ShuttingDown on SIGTERM/SIGINT.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// Current returns the current phase.
func Current() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return Current() == PhaseShuttingDown
}
