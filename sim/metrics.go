// Records per-facility timings (start, end, accumulated wait and occupancy)
// keyed by "<facility>_<kind>".

package sim

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Metric key suffixes used by the facilities.
const (
	SuffixStart    = "_start"
	SuffixEnd      = "_end"
	SuffixWait     = "_wait"
	SuffixOccupied = "_occupied"
)

// Metrics is a flat key/value store of float timings. A key that was never set
// reads as zero.
//
// Thread-safety: NOT thread-safe. Only processes running on the kernel touch it.
type Metrics struct {
	values map[string]float64
}

// NewMetrics creates an empty store.
func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]float64)}
}

// Get returns the value stored under key, or 0.
func (m *Metrics) Get(key string) float64 {
	return m.values[key]
}

// Set stores value under key.
func (m *Metrics) Set(key string, value float64) {
	m.values[key] = value
}

// Add accumulates delta into key.
func (m *Metrics) Add(key string, delta float64) {
	m.values[key] += delta
}

// Snapshot returns a copy of every stored value.
func (m *Metrics) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (m *Metrics) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stat summarizes every metric sharing one suffix.
type Stat struct {
	Suffix string
	Count  int
	Mean   float64
	StdDev float64
	Max    float64
}

// Summary aggregates the wait and occupancy metrics across facilities.
func (m *Metrics) Summary() []Stat {
	var out []Stat
	for _, suffix := range []string{SuffixWait, SuffixOccupied} {
		var xs []float64
		for _, k := range m.Keys() {
			if strings.HasSuffix(k, suffix) {
				xs = append(xs, m.values[k])
			}
		}
		if len(xs) == 0 {
			continue
		}
		s := Stat{Suffix: suffix, Count: len(xs), Mean: stat.Mean(xs, nil)}
		if len(xs) > 1 {
			s.StdDev = stat.StdDev(xs, nil)
		}
		for _, x := range xs {
			if x > s.Max {
				s.Max = x
			}
		}
		out = append(out, s)
	}
	return out
}
