// Package trace provides decision-trace recording for the traffic dispatcher.
// This package has no dependencies on sim/ or sim/traffic/: it stores pure data types.
package trace

// LegRecord captures one go request and how the dispatcher resolved it.
type LegRecord struct {
	AGV      string
	Clock    float64 // last synced simulated time
	Priority int
	Flag     int
	Start    int
	End      int // resolved destination; the free buffer cell for return legs
	PathLen  int
	Cost     int
	Split    int // index of the claimed buffer-lane cell, -1 when none
	Accepted bool
	Reason   string // error text when the leg was rejected
}

// GateRecord captures one setcell update.
type GateRecord struct {
	Cell     int
	Priority int
	Clock    float64
}
