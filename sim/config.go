package sim

import (
	"math"
	"time"
)

// Config groups the kernel's pacing parameters.
type Config struct {
	InitialTime float64 // simulated time the run starts at
	// Factor is the number of wall-clock seconds per simulated time unit.
	// Zero disables pacing: events run as fast as they can be processed.
	Factor float64
	// Strict aborts the run with ErrTooSlow when the wall clock has drifted past an
	// event's deadline by more than Factor seconds.
	Strict bool
	// Horizon stops the run before the first event scheduled after it (default +Inf).
	Horizon float64
	// WallClock overrides time.Now, for tests.
	WallClock func() time.Time
}

// DefaultConfig returns a real-time configuration with strict pacing.
func DefaultConfig() Config {
	return Config{
		Factor:  1.0,
		Strict:  true,
		Horizon: math.Inf(1),
	}
}
