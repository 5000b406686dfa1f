package terminal

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
)

// ARMG is a rail-mounted yard crane. It never meets an AGV directly: each of its
// lanes has a Holder, and the crane hands containers to and from the holder.
type ARMG struct {
	env       *env
	id        int
	name      string
	position  int
	lanes     *laneTable
	shift     *sim.FilterStore[*AGV]
	holders   map[int]*Holder
	queue     taskQueue[*ARMGTask]
	current   *ARMGTask
	taskLanes map[int]int
}

func newARMG(e *env, id, position int, lanes []int) (*ARMG, error) {
	g := &ARMG{
		env:       e,
		id:        id,
		name:      fmt.Sprintf("armg_%d", id),
		position:  position,
		lanes:     newLaneTable(lanes),
		holders:   make(map[int]*Holder, len(lanes)),
		taskLanes: make(map[int]int),
	}
	shift, err := sim.NewFilterStore[*AGV](e.sim, g.name+"_shift", len(g.lanes.order))
	if err != nil {
		return nil, err
	}
	g.shift = shift
	for _, lane := range g.lanes.order {
		h, err := newHolder(e, lane, g)
		if err != nil {
			return nil, err
		}
		g.holders[lane] = h
	}
	logrus.Debugf("create %s at cell %d with lanes %v", g.name, position, lanes)
	return g, nil
}

// ID returns the crane's id.
func (g *ARMG) ID() int { return g.id }

// Name returns the crane's name.
func (g *ARMG) Name() string { return g.name }

// Position returns the crane's base cell.
func (g *ARMG) Position() int { return g.position }

// Lanes returns the crane's lanes in declaration order.
func (g *ARMG) Lanes() []int { return append([]int(nil), g.lanes.order...) }

// Holder returns the holder serving lane.
func (g *ARMG) Holder(lane int) (*Holder, bool) {
	h, ok := g.holders[lane]
	return h, ok
}

// Holders returns the crane's holders in lane order.
func (g *ARMG) Holders() []*Holder {
	out := make([]*Holder, 0, len(g.lanes.order))
	for _, lane := range g.lanes.order {
		out = append(out, g.holders[lane])
	}
	return out
}

// Pending returns the number of queued tasks.
func (g *ARMG) Pending() int { return g.queue.len() }

// PutTask queues t. Lower priority numbers are served first.
func (g *ARMG) PutTask(priority int, t *ARMGTask) {
	g.queue.push(priority, t)
	logrus.Debugf("(%.3f) %s got task %s with priority %d", g.env.sim.Now(), g.name, t, priority)
}

func (g *ARMG) laneCell(lane int) grid.Cell { return grid.LaneCell(g.position, lane) }

// taskLane returns the lane chosen for rawID, or 0 if none is chosen yet.
func (g *ARMG) taskLane(rawID int) int { return g.taskLanes[rawID] }

func (g *ARMG) setTaskLane(rawID, lane int) error {
	t := g.lookup(rawID)
	if t == nil {
		return fmt.Errorf("%s has no task %d: %w", g.name, rawID, ErrInvalidTask)
	}
	t.Lane = lane
	g.taskLanes[rawID] = lane
	return nil
}

func (g *ARMG) lookup(rawID int) *ARMGTask {
	if g.current != nil && g.current.RawID == rawID {
		return g.current
	}
	t, _ := g.queue.find(func(t *ARMGTask) bool { return t.RawID == rawID })
	return t
}

// unprocessed returns the queued task for rawID that the crane has not popped yet.
func (g *ARMG) unprocessed(rawID int) *ARMGTask {
	t, _ := g.queue.find(func(t *ARMGTask) bool { return t.RawID == rawID })
	return t
}

func (g *ARMG) start() {
	g.env.sim.Process(g.name, g.run)
}

func (g *ARMG) run(p *sim.Process) error {
	e := g.env
	t := e.times
	for _, h := range g.Holders() {
		h.start()
	}
	e.sim.Data.Set(g.name+sim.SuffixStart, p.Now())

	for {
		priority, task, ok := g.queue.pop()
		if !ok {
			logrus.Infof("(%.3f) %s finished all jobs", p.Now(), g.name)
			break
		}
		g.current = task
		logrus.Infof("(%.3f) %s start processing %s", p.Now(), g.name, task)

		if task.Lane == 0 {
			task.Lane = g.lanes.leastLoaded()
			g.taskLanes[task.RawID] = task.Lane
			g.lanes.push(task.Lane, priority)
		}
		h := g.holders[task.Lane]
		if !h.hasTask(task.RawID) {
			h.PutTask(priority, task)
		}
		if err := e.setCell(p, g.laneCell(task.Lane), priority); err != nil {
			return err
		}
		logrus.Debugf("(%.3f) %s current lanes: %v", p.Now(), g.name, g.lanes)

		bound := func(a *AGV) bool { return a == task.Transporter }
		switch task.Flag {
		case Out:
			if err := p.Sleep(t.ARMGReady); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s ready to drop container to lane %d in task_%d", p.Now(), g.name, task.Lane, task.RawID)
			if _, err := e.timed(p, g.name+sim.SuffixWait, g.shift.Get(bound)); err != nil {
				return err
			}
			if err := h.holdLift(p, t.ARMGLiftDrop); err != nil {
				return err
			}
			if _, err := p.Wait(h.inter.Put(g)); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s dropped container to lane %d in task_%d", p.Now(), g.name, task.Lane, task.RawID)

		case Enter:
			if _, err := e.timed(p, g.name+sim.SuffixWait, g.shift.Get(bound)); err != nil {
				return err
			}
			if err := h.holdLift(p, t.ARMGLiftDrop); err != nil {
				return err
			}
			if _, err := p.Wait(h.inter.Put(g)); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s got container from lane %d in task_%d", p.Now(), g.name, task.Lane, task.RawID)
			if err := p.Sleep(t.ARMGToYard); err != nil {
				return err
			}
			if err := e.tm.SetDone(task.RawID); err != nil {
				return err
			}
			logrus.Infof("(%.3f) task_%d finished", p.Now(), task.RawID)

		default:
			return fmt.Errorf("%s: task %d flag %d: %w", g.name, task.RawID, task.Flag, ErrInvalidTask)
		}
	}

	e.sim.Data.Set(g.name+sim.SuffixEnd, p.Now())
	return nil
}
