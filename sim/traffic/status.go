package traffic

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/easyterm/easyterm/sim/trace"
)

type gateEntry struct {
	Cell     int `json:"cell"`
	Priority int `json:"priority"`
}

// StatusHandler returns a read-only HTTP view of the dispatcher state.
func StatusHandler(d *Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Get("/barriers", func(w http.ResponseWriter, _ *http.Request) {
		cells := d.Router().Barriers()
		out := make([]int, len(cells))
		for i, c := range cells {
			out[i] = int(c)
		}
		writeJSON(w, out)
	})
	r.Get("/gates", func(w http.ResponseWriter, _ *http.Request) {
		snap := d.Gate().Snapshot()
		out := make([]gateEntry, 0, len(snap))
		for c, p := range snap {
			out = append(out, gateEntry{Cell: int(c), Priority: p})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
		writeJSON(w, out)
	})
	r.Get("/vehicles", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, d.Vehicles())
	})
	r.Get("/trace", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, trace.Summarize(d.Trace()))
	})
	r.Get("/clock", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, Heartbeat{Now: d.Now()})
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
