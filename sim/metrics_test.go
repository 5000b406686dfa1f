package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/easyterm/easyterm/sim/internal/testutil"
)

func TestMetrics_MissingKey_ReadsZero(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, 0.0, m.Get("qc_1_wait"))
}

func TestMetrics_Add_Accumulates(t *testing.T) {
	m := NewMetrics()
	m.Add("agv_1_wait", 1.5)
	m.Add("agv_1_wait", 2)
	m.Set("agv_1_start", 0)

	assert.Equal(t, 3.5, m.Get("agv_1_wait"))
	assert.Equal(t, []string{"agv_1_start", "agv_1_wait"}, m.Keys())
	snap := m.Snapshot()
	snap["agv_1_wait"] = 0
	assert.Equal(t, 3.5, m.Get("agv_1_wait"), "snapshot must be a copy")
}

func TestMetrics_Summary_GroupsBySuffix(t *testing.T) {
	m := NewMetrics()
	m.Set("qc_1_wait", 2)
	m.Set("agv_1_wait", 4)
	m.Set("holder_1_490_occupied", 3)
	m.Set("qc_1_start", 100)

	sum := m.Summary()

	if assert.Len(t, sum, 2) {
		assert.Equal(t, SuffixWait, sum[0].Suffix)
		assert.Equal(t, 2, sum[0].Count)
		assert.InDelta(t, 3.0, sum[0].Mean, 1e-9)
		assert.Equal(t, 4.0, sum[0].Max)
		testutil.AssertFloat64Equal(t, "wait stddev", math.Sqrt2, sum[0].StdDev, 1e-9)
		assert.Equal(t, SuffixOccupied, sum[1].Suffix)
		assert.Equal(t, 0.0, sum[1].StdDev)
	}
}
