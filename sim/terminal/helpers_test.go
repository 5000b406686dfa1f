package terminal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/easyterm/easyterm/sim/grid"
	"github.com/easyterm/easyterm/sim/traffic"
)

// fakeTraffic executes every leg instantly once the destination gate admits it.
// Return legs park on cell 201 + n for the n-th return. Vehicles listed in reject
// get -1 for every leg.
type fakeTraffic struct {
	mu      sync.Mutex
	reject  map[string]bool
	gates   map[grid.Cell]int
	changed chan struct{}
	setcell []gateUpdate
	legs    []traffic.GoRequest
	syncs   int
	parked  int
}

type gateUpdate struct {
	Cell     grid.Cell
	Priority int
}

func newFakeTraffic(reject ...string) *fakeTraffic {
	f := &fakeTraffic{reject: map[string]bool{}, gates: map[grid.Cell]int{}, changed: make(chan struct{})}
	for _, name := range reject {
		f.reject[name] = true
	}
	return f
}

func (f *fakeTraffic) SetCell(_ context.Context, cell grid.Cell, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[cell] = priority
	f.setcell = append(f.setcell, gateUpdate{Cell: cell, Priority: priority})
	close(f.changed)
	f.changed = make(chan struct{})
	return nil
}

func (f *fakeTraffic) Sync(context.Context, float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return nil
}

func (f *fakeTraffic) Go(ctx context.Context, req traffic.GoRequest) (grid.Cell, error) {
	f.mu.Lock()
	f.legs = append(f.legs, req)
	if f.reject[req.AGV] {
		f.mu.Unlock()
		return 0, traffic.ErrRejected
	}
	if req.Flag == traffic.FlagReturn {
		cell := grid.Cell(201 + f.parked)
		f.parked++
		f.mu.Unlock()
		return cell, nil
	}
	f.mu.Unlock()

	timeout := time.After(5 * time.Second)
	for {
		f.mu.Lock()
		gate, ok := f.gates[req.End]
		changed := f.changed
		f.mu.Unlock()
		if ok && req.Priority <= gate {
			return req.End, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timeout:
			return 0, traffic.ErrRejected
		}
	}
}

func (f *fakeTraffic) Legs() []traffic.GoRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]traffic.GoRequest(nil), f.legs...)
}

func (f *fakeTraffic) Updates() []gateUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateUpdate(nil), f.setcell...)
}

func (f *fakeTraffic) Syncs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}

// addFacilities adds the cranes and vehicles of job without its tasks.
func addFacilities(t *testing.T, term *Terminal, job Job) {
	t.Helper()
	for _, c := range job.QC {
		_, err := term.AddQC(c.ID, c.Position, c.Lanes)
		require.NoError(t, err)
	}
	for _, c := range job.ARMG {
		_, err := term.AddARMG(c.ID, c.Position, c.Lanes)
		require.NoError(t, err)
	}
	for _, v := range job.AGV {
		_, err := term.AddAGV(v.ID, v.Position)
		require.NoError(t, err)
	}
}

func newTestTerminal(t *testing.T, tr Traffic) *Terminal {
	t.Helper()
	term, err := New(Config{Seed: 42, Dispatcher: tr})
	require.NoError(t, err)
	return term
}

// inportJob is one quay crane, one yard crane and one AGV moving a container from
// ship to yard.
func inportJob() Job {
	return Job{
		QC:   []CraneSpec{{ID: 1, Position: 20, Lanes: []int{1, 2}}},
		ARMG: []CraneSpec{{ID: 1, Position: 500, Lanes: []int{490, 495}}},
		AGV:  []VehicleSpec{{ID: 1, Position: 215}},
		Tasks: []TaskSpec{{
			RawID:       1,
			Priority:    1,
			Container:   Container{ID: "C1", Flow: Inport, Bay: 3, Yard: 7},
			Start:       1,
			End:         1,
			Transporter: 1,
		}},
	}
}
