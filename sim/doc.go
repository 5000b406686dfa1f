// Package sim provides the real-time discrete-event kernel the terminal runs on.
//
// # Reading Guide
//
//   - event.go: Event lifecycle (pending, triggered, processed) and Timeout/AnyOf
//   - simulator.go: the run loop, wall-clock pacing and teardown
//   - process.go: cooperative processes and their suspension points
//   - external.go: readiness sources multiplexed into the run loop
//   - store.go, resource.go: exchange primitives built on events
//
// # Scheduling Model
//
// Events are ordered by (time, priority class, sequence). Processes are
// goroutine-backed but never run concurrently: the kernel resumes one process
// and blocks until it suspends in Wait. External sources are the only way other
// goroutines feed results into a run.
//
// Sub-packages:
//   - sim/grid/: lane grid, A* routing and barriers
//   - sim/terminal/: facility state machines and the task manager
//   - sim/traffic/: the traffic dispatcher server and its clients
package sim
