package terminal

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
	"github.com/easyterm/easyterm/sim/traffic"
)

// Traffic is the dispatcher surface the facilities talk to. *traffic.Client
// implements it over TCP.
type Traffic interface {
	SetCell(ctx context.Context, cell grid.Cell, priority int) error
	Sync(ctx context.Context, now float64) error
	Go(ctx context.Context, req traffic.GoRequest) (grid.Cell, error)
}

// env is the state every facility of a run shares.
type env struct {
	sim     *sim.Simulator
	ctx     context.Context
	traffic Traffic
	tm      *TaskManager
	times   ServiceTimes
	speed   int
}

// setCell publishes priority as the gate value of cell. The call runs off the
// kernel goroutine; p is suspended until it returns.
func (e *env) setCell(p *sim.Process, cell grid.Cell, priority int) error {
	_, err := p.Wait(e.sim.Go("setcell", func() (any, error) {
		return nil, e.traffic.SetCell(e.ctx, cell, priority)
	}))
	if err != nil {
		return fmt.Errorf("%s: setcell %d %d: %w", p.Name(), cell, priority, err)
	}
	return nil
}

func (e *env) syncClock(p *sim.Process) error {
	now := p.Now()
	_, err := p.Wait(e.sim.Go("sync", func() (any, error) {
		return nil, e.traffic.Sync(e.ctx, now)
	}))
	return err
}

// move asks the dispatcher to execute one leg and returns the cell the vehicle
// reached. A rejected move is a deadlock.
func (e *env) move(p *sim.Process, req traffic.GoRequest) (grid.Cell, error) {
	v, err := p.Wait(e.sim.Go("go "+req.AGV, func() (any, error) {
		return e.traffic.Go(e.ctx, req)
	}))
	if err != nil {
		if errors.Is(err, traffic.ErrRejected) {
			return 0, fmt.Errorf("traffic deadlock found in %s: %w", req.AGV, ErrDeadlock)
		}
		return 0, fmt.Errorf("%s: %w", req.AGV, err)
	}
	return v.(grid.Cell), nil
}

// timed waits on ev and adds the simulated time spent to the metric key.
func (e *env) timed(p *sim.Process, key string, ev *sim.Event) (any, error) {
	start := p.Now()
	v, err := p.Wait(ev)
	e.sim.Data.Add(key, p.Now()-start)
	return v, err
}

// release drops priority from lane and republishes the lane's next priority, if any.
func (e *env) release(p *sim.Process, owner string, lanes *laneTable, lane, priority int, cell grid.Cell) error {
	lanes.remove(lane, priority)
	if next, ok := lanes.min(lane); ok {
		if err := e.setCell(p, cell, next); err != nil {
			return err
		}
	}
	logrus.Debugf("(%.3f) %s current lanes: %v", p.Now(), owner, lanes)
	return nil
}
