package trace

// TraceSummary aggregates statistics from a DispatchTrace.
type TraceSummary struct {
	TotalLegs           int
	AcceptedCount       int
	RejectedCount       int
	Crossings           int // legs that claimed a buffer-lane cell
	MeanCost            float64
	MaxCost             int
	GateUpdates         int
	UniqueVehicles      int
	VehicleDistribution map[string]int // vehicle name → count of legs
}

// Summarize computes aggregate statistics from a DispatchTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(dt *DispatchTrace) *TraceSummary {
	summary := &TraceSummary{
		VehicleDistribution: make(map[string]int),
	}
	if dt == nil {
		return summary
	}

	legs := dt.Legs()
	summary.TotalLegs = len(legs)
	summary.GateUpdates = len(dt.Gates())

	totalCost := 0
	routed := 0
	for _, l := range legs {
		summary.VehicleDistribution[l.AGV]++
		if l.Accepted {
			summary.AcceptedCount++
		} else {
			summary.RejectedCount++
		}
		if l.Split > 0 {
			summary.Crossings++
		}
		if l.PathLen == 0 {
			continue
		}
		routed++
		totalCost += l.Cost
		if l.Cost > summary.MaxCost {
			summary.MaxCost = l.Cost
		}
	}
	if routed > 0 {
		summary.MeanCost = float64(totalCost) / float64(routed)
	}

	summary.UniqueVehicles = len(summary.VehicleDistribution)

	return summary
}
