package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/terminal"
	"github.com/easyterm/easyterm/sim/trace"
)

// facilityRow gathers one facility's timings from the flat metrics map.
type facilityRow struct {
	name     string
	start    float64
	end      float64
	wait     float64
	occupied float64
}

func facilityRows(metrics map[string]float64) []facilityRow {
	rows := map[string]*facilityRow{}
	for key, v := range metrics {
		for _, suffix := range []string{sim.SuffixStart, sim.SuffixEnd, sim.SuffixWait, sim.SuffixOccupied} {
			name, ok := strings.CutSuffix(key, suffix)
			if !ok {
				continue
			}
			r := rows[name]
			if r == nil {
				r = &facilityRow{name: name}
				rows[name] = r
			}
			switch suffix {
			case sim.SuffixStart:
				r.start = v
			case sim.SuffixEnd:
				r.end = v
			case sim.SuffixWait:
				r.wait = v
			case sim.SuffixOccupied:
				r.occupied = v
			}
			break
		}
	}
	out := make([]facilityRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// writeReport renders the run outcome as tables.
func writeReport(w io.Writer, res *terminal.Result) {
	fmt.Fprintf(w, "run %s: elapsed %.3f, all done: %t\n", res.RunID, res.Elapsed, res.AllDone)

	tasks := table.NewWriter()
	tasks.SetOutputMirror(w)
	tasks.SetTitle("Tasks")
	tasks.AppendHeader(table.Row{"Task", "Flow", "Priority", "AGV", "Status"})
	for _, t := range res.Tasks {
		tasks.AppendRow(table.Row{t.RawID, t.Flow, t.Priority, t.Transporter, t.Status})
	}
	tasks.Render()

	facilities := table.NewWriter()
	facilities.SetOutputMirror(w)
	facilities.SetTitle("Facilities")
	facilities.AppendHeader(table.Row{"Facility", "Start", "End", "Wait", "Occupied"})
	for _, r := range facilityRows(res.Metrics) {
		facilities.AppendRow(table.Row{r.name, fmtTime(r.start), fmtTime(r.end), fmtTime(r.wait), fmtTime(r.occupied)})
	}
	facilities.Render()

	if len(res.Summary) > 0 {
		summary := table.NewWriter()
		summary.SetOutputMirror(w)
		summary.SetTitle("Summary")
		summary.AppendHeader(table.Row{"Metric", "Count", "Mean", "StdDev", "Max"})
		for _, s := range res.Summary {
			summary.AppendRow(table.Row{strings.TrimPrefix(s.Suffix, "_"), s.Count, fmtTime(s.Mean), fmtTime(s.StdDev), fmtTime(s.Max)})
		}
		summary.Render()
	}

	for _, name := range res.Suspended {
		fmt.Fprintf(w, "suspended: %s\n", name)
	}
	for _, err := range res.Failures {
		fmt.Fprintf(w, "failure: %v\n", err)
	}
}

// writeTraceSummary renders the dispatcher's leg statistics.
func writeTraceSummary(w io.Writer, s *trace.TraceSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Dispatcher legs")
	tw.AppendHeader(table.Row{"Legs", "Rejected", "Crossings", "Mean cost", "Max cost", "Gate updates"})
	tw.AppendRow(table.Row{s.TotalLegs, s.RejectedCount, s.Crossings, fmt.Sprintf("%.2f", s.MeanCost), s.MaxCost, s.GateUpdates})
	tw.Render()

	names := make([]string, 0, len(s.VehicleDistribution))
	for name := range s.VehicleDistribution {
		names = append(names, name)
	}
	sort.Strings(names)
	vt := table.NewWriter()
	vt.SetOutputMirror(w)
	vt.AppendHeader(table.Row{"AGV", "Legs"})
	for _, name := range names {
		vt.AppendRow(table.Row{name, s.VehicleDistribution[name]})
	}
	vt.Render()
}

func fmtTime(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
