package trace

import "sync"

// TraceLevel controls the verbosity of dispatcher tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every leg and gate decision of the dispatcher.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// DispatchTrace collects decision records while a dispatcher serves a run.
//
// Thread-safety: safe for concurrent use. A nil trace records nothing.
type DispatchTrace struct {
	Config TraceConfig

	mu    sync.Mutex
	legs  []LegRecord
	gates []GateRecord
}

// NewDispatchTrace creates a DispatchTrace ready for recording.
func NewDispatchTrace(config TraceConfig) *DispatchTrace {
	return &DispatchTrace{
		Config: config,
		legs:   make([]LegRecord, 0),
		gates:  make([]GateRecord, 0),
	}
}

// Enabled reports whether records are kept.
func (dt *DispatchTrace) Enabled() bool {
	return dt != nil && dt.Config.Level == TraceLevelDecisions
}

// RecordLeg appends a leg decision record.
func (dt *DispatchTrace) RecordLeg(record LegRecord) {
	if !dt.Enabled() {
		return
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.legs = append(dt.legs, record)
}

// RecordGate appends a gate update record.
func (dt *DispatchTrace) RecordGate(record GateRecord) {
	if !dt.Enabled() {
		return
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.gates = append(dt.gates, record)
}

// Legs returns a copy of the leg records in arrival order.
func (dt *DispatchTrace) Legs() []LegRecord {
	if dt == nil {
		return nil
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return append([]LegRecord(nil), dt.legs...)
}

// Gates returns a copy of the gate records in arrival order.
func (dt *DispatchTrace) Gates() []GateRecord {
	if dt == nil {
		return nil
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return append([]GateRecord(nil), dt.gates...)
}
