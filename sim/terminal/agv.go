package terminal

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
	"github.com/easyterm/easyterm/sim/traffic"
)

// AGV is a transporter. For each task it drives to the start facility, waits for
// the container, drives to the end facility and waits for the drop. Every leg is
// executed remotely by the dispatcher; the AGV only learns where it ended up.
type AGV struct {
	env      *env
	id       int
	name     string
	position grid.Cell
	shift    *sim.Store[Endpoint]
	queue    taskQueue[*AGVTask]
	current  *AGVTask
}

func newAGV(e *env, id int, position grid.Cell) (*AGV, error) {
	a := &AGV{env: e, id: id, name: fmt.Sprintf("agv_%d", id), position: position}
	shift, err := sim.NewStore[Endpoint](e.sim, a.name+"_shift", 1)
	if err != nil {
		return nil, err
	}
	a.shift = shift
	logrus.Debugf("create %s at cell %d", a.name, position)
	return a, nil
}

// ID returns the vehicle's id.
func (a *AGV) ID() int { return a.id }

// Name returns the vehicle's name. It is also the name it logs in with.
func (a *AGV) Name() string {
	if a == nil {
		return "<none>"
	}
	return a.name
}

// Position returns the cell the vehicle last reported.
func (a *AGV) Position() int { return int(a.position) }

// Pending returns the number of queued tasks.
func (a *AGV) Pending() int { return a.queue.len() }

// PutTask queues t. Lower priority numbers are served first.
func (a *AGV) PutTask(priority int, t *AGVTask) {
	a.queue.push(priority, t)
	logrus.Debugf("(%.3f) %s got task %s with priority %d", a.env.sim.Now(), a.name, t, priority)
}

func (a *AGV) start() {
	a.env.sim.Process(a.name, a.run)
}

func (a *AGV) run(p *sim.Process) error {
	e := a.env
	e.sim.Data.Set(a.name+sim.SuffixStart, p.Now())

	for {
		priority, task, ok := a.queue.pop()
		if !ok {
			logrus.Infof("(%.3f) %s finished all jobs", p.Now(), a.name)
			break
		}
		a.current = task
		logrus.Infof("(%.3f) %s start processing %s", p.Now(), a.name, task)
		if err := e.tm.Start(task.RawID); err != nil {
			return err
		}

		if err := a.visit(p, task, task.Start, priority, traffic.FlagToStart); err != nil {
			return err
		}
		logrus.Infof("(%.3f) %s got container in task_%d", p.Now(), a.name, task.RawID)
		if err := a.visit(p, task, task.End, priority, traffic.FlagToEnd); err != nil {
			return err
		}
		logrus.Infof("(%.3f) %s delivered container in task_%d", p.Now(), a.name, task.RawID)
	}

	if a.position.InBufferLane() {
		e.sim.Data.Set(a.name+sim.SuffixEnd, p.Now())
		return nil
	}

	logrus.Infof("(%.3f) %s return to buffer lane", p.Now(), a.name)
	cell, err := e.move(p, traffic.GoRequest{
		AGV:      a.name,
		Priority: 0,
		Start:    a.position,
		End:      -1,
		Speed:    e.speed,
		Flag:     traffic.FlagReturn,
	})
	if err != nil {
		return err
	}
	a.position = cell
	logrus.Infof("(%.3f) %s returned to buffer lane %d", p.Now(), a.name, a.position)
	e.sim.Data.Set(a.name+sim.SuffixEnd, p.Now())
	return nil
}

// visit drives to ep's handoff cell for task and waits until the facility there
// has served the vehicle.
func (a *AGV) visit(p *sim.Process, task *AGVTask, ep Endpoint, priority, flag int) error {
	e := a.env
	dock, lane, err := a.claimLane(p, ep, task.RawID, priority)
	if err != nil {
		return err
	}
	cell := dock.handoffCell(lane)

	logrus.Infof("(%.3f) %s departs to %s on lane %d in task_%d", p.Now(), a.name, dock.Name(), lane, task.RawID)
	reached, err := e.move(p, traffic.GoRequest{
		AGV:      a.name,
		Priority: priority,
		Start:    a.position,
		End:      cell,
		Speed:    e.speed,
		Flag:     flag,
	})
	if err != nil {
		return err
	}
	a.position = reached
	logrus.Infof("(%.3f) %s arrives %d in task_%d", p.Now(), a.name, a.position, task.RawID)

	if _, err := p.Wait(dock.dock(a)); err != nil {
		return err
	}
	_, err = e.timed(p, a.name+sim.SuffixWait, a.shift.Get())
	return err
}

// claimLane resolves the lane the facility serves rawID on, choosing and
// publishing one if the facility has not yet. An ARMG endpoint resolves to the
// holder of that lane, which also receives the crane's task if it lacks it.
func (a *AGV) claimLane(p *sim.Process, ep Endpoint, rawID, priority int) (Endpoint, int, error) {
	e := a.env
	switch ep.Kind {
	case KindQC:
		q := ep.QC
		lane := q.taskLane(rawID)
		if lane == 0 {
			lane = q.lanes.leastLoaded()
			if err := q.setTaskLane(rawID, lane); err != nil {
				return ep, 0, err
			}
			q.lanes.push(lane, priority)
			next, _ := q.lanes.min(lane)
			if err := e.setCell(p, q.laneCell(lane), next); err != nil {
				return ep, 0, err
			}
			logrus.Debugf("(%.3f) %s current lanes: %v", p.Now(), q.name, q.lanes)
		}
		return ep, lane, nil

	case KindARMG:
		g := ep.ARMG
		lane := g.taskLane(rawID)
		assigned := lane == 0
		if assigned {
			lane = g.lanes.leastLoaded()
			if err := g.setTaskLane(rawID, lane); err != nil {
				return ep, 0, err
			}
			g.lanes.push(lane, priority)
		}
		h := g.holders[lane]
		if !h.hasTask(rawID) {
			if t := g.unprocessed(rawID); t != nil {
				h.PutTask(priority, t)
			}
		}
		if assigned {
			next, _ := g.lanes.min(lane)
			if err := e.setCell(p, g.laneCell(lane), next); err != nil {
				return ep, 0, err
			}
			logrus.Debugf("(%.3f) %s current lanes: %v", p.Now(), g.name, g.lanes)
		}
		return HolderEndpoint(h), lane, nil

	case KindHolder:
		return ep, ep.Holder.lane, nil
	}
	return ep, 0, fmt.Errorf("%s cannot serve an AGV: %w", ep.Name(), ErrInvalidTask)
}
