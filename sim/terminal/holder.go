package terminal

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
)

// Holder is the lift on one ARMG lane. The crane side and the AGV side each have
// their own single-slot buffer, so neither waits on the other's exact timing. The
// lift itself takes one operation at a time: the holder's jacking and the crane's
// lift or drop onto the lane queue for it.
//
// A holder outlives its crane's queue: it keeps serving tasks the AGVs route to
// it and stops only once every terminal task is finished.
type Holder struct {
	env     *env
	name    string
	lane    int
	armg    *ARMG
	inter   *sim.Store[*ARMG]
	shift   *sim.Store[*AGV]
	lift    *sim.Resource
	queue   taskQueue[*ARMGTask]
	current *ARMGTask
	wakeup  *sim.Event
}

func newHolder(e *env, lane int, g *ARMG) (*Holder, error) {
	h := &Holder{env: e, name: fmt.Sprintf("holder_%d_%d", g.id, lane), lane: lane, armg: g}
	var err error
	if h.inter, err = sim.NewStore[*ARMG](e.sim, h.name+"_inter", 1); err != nil {
		return nil, err
	}
	if h.shift, err = sim.NewStore[*AGV](e.sim, h.name+"_shift", 1); err != nil {
		return nil, err
	}
	if h.lift, err = sim.NewResource(e.sim, h.name+"_lift", 1); err != nil {
		return nil, err
	}
	return h, nil
}

// Name returns the holder's name.
func (h *Holder) Name() string { return h.name }

// Position returns the holder's lane, which is also its base position.
func (h *Holder) Position() int { return h.lane }

// ARMG returns the crane the holder belongs to.
func (h *Holder) ARMG() *ARMG { return h.armg }

// Pending returns the number of queued tasks.
func (h *Holder) Pending() int { return h.queue.len() }

// PutTask queues t and wakes the holder if it is idle.
func (h *Holder) PutTask(priority int, t *ARMGTask) {
	h.queue.push(priority, t)
	logrus.Debugf("(%.3f) %s got task %s with priority %d", h.env.sim.Now(), h.name, t, priority)
	if h.wakeup != nil && !h.wakeup.Triggered() {
		_ = h.wakeup.Succeed(nil)
	}
	h.wakeup = nil
}

// hasTask reports whether rawID is queued on or being served by the holder.
func (h *Holder) hasTask(rawID int) bool {
	if h.current != nil && h.current.RawID == rawID {
		return true
	}
	_, ok := h.queue.find(func(t *ARMGTask) bool { return t.RawID == rawID })
	return ok
}

// holdLift occupies the lift for d once it is free.
func (h *Holder) holdLift(p *sim.Process, d float64) error {
	req := h.lift.Request()
	if _, err := p.Wait(req); err != nil {
		return err
	}
	err := p.Sleep(d)
	h.lift.Release(req)
	return err
}

// laneCell returns the cell AGVs use to reach the holder.
func (h *Holder) laneCell() grid.Cell { return h.armg.laneCell(h.lane) }

func (h *Holder) start() {
	h.env.sim.Process(h.name, h.run)
}

// idle suspends the holder until a task is queued or every terminal task is done.
func (h *Holder) idle(p *sim.Process) error {
	h.wakeup = sim.NewEvent(h.env.sim)
	_, err := p.Wait(h.env.sim.AnyOf(h.wakeup, h.env.tm.Finished()))
	return err
}

func (h *Holder) run(p *sim.Process) error {
	e := h.env
	g := h.armg
	e.sim.Data.Set(h.name+sim.SuffixStart, p.Now())

	for {
		priority, task, ok := h.queue.pop()
		if !ok {
			if e.tm.AllDone() {
				logrus.Debugf("(%.3f) %s close", p.Now(), h.name)
				break
			}
			if err := h.idle(p); err != nil {
				return err
			}
			continue
		}

		h.current = task
		started := p.Now()
		switch task.Flag {
		case Out:
			if _, err := p.Wait(g.shift.Put(task.Transporter)); err != nil {
				return err
			}
			if _, err := p.Wait(h.inter.Get()); err != nil {
				return err
			}
			agv, err := sim.Take[*AGV](p, h.shift.Get())
			if err != nil {
				return err
			}
			if err := h.holdLift(p, e.times.HolderJack); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s jacked container to %s in task_%d", p.Now(), h.name, agv.Name(), task.RawID)
			if _, err := p.Wait(agv.shift.Put(HolderEndpoint(h))); err != nil {
				return err
			}

		case Enter:
			agv, err := sim.Take[*AGV](p, h.shift.Get())
			if err != nil {
				return err
			}
			if err := h.holdLift(p, e.times.HolderJack); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s jacked container from %s in task_%d", p.Now(), h.name, agv.Name(), task.RawID)
			if _, err := p.Wait(agv.shift.Put(HolderEndpoint(h))); err != nil {
				return err
			}
			if _, err := p.Wait(g.shift.Put(task.Transporter)); err != nil {
				return err
			}
			if _, err := p.Wait(h.inter.Get()); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%s: task %d flag %d: %w", h.name, task.RawID, task.Flag, ErrInvalidTask)
		}

		if err := e.release(p, g.name, g.lanes, h.lane, priority, h.laneCell()); err != nil {
			return err
		}
		e.sim.Data.Add(h.name+sim.SuffixOccupied, p.Now()-started)
	}

	e.sim.Data.Set(h.name+sim.SuffixEnd, p.Now())
	return nil
}
