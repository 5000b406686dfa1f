package terminal

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
)

// QC is a quay crane. It serves its lanes one task at a time: UNLOAD drops a
// container onto the bound AGV, LOAD lifts one off it and then stows it on the ship.
type QC struct {
	env      *env
	id       int
	name     string
	position int
	lanes    *laneTable
	shift    *sim.FilterStore[*AGV]
	queue    taskQueue[*QCTask]
	current  *QCTask
}

func newQC(e *env, id, position int, lanes []int) (*QC, error) {
	q := &QC{env: e, id: id, name: fmt.Sprintf("qc_%d", id), position: position, lanes: newLaneTable(lanes)}
	shift, err := sim.NewFilterStore[*AGV](e.sim, q.name+"_shift", len(q.lanes.order))
	if err != nil {
		return nil, err
	}
	q.shift = shift
	logrus.Debugf("create %s at cell %d with lanes %v", q.name, position, lanes)
	return q, nil
}

// ID returns the crane's id.
func (q *QC) ID() int { return q.id }

// Name returns the crane's name.
func (q *QC) Name() string { return q.name }

// Position returns the crane's base cell.
func (q *QC) Position() int { return q.position }

// Lanes returns the crane's lanes in declaration order.
func (q *QC) Lanes() []int { return append([]int(nil), q.lanes.order...) }

// Pending returns the number of queued tasks.
func (q *QC) Pending() int { return q.queue.len() }

// PutTask queues t. Lower priority numbers are served first.
func (q *QC) PutTask(priority int, t *QCTask) {
	q.queue.push(priority, t)
	logrus.Debugf("(%.3f) %s got task %s with priority %d", q.env.sim.Now(), q.name, t, priority)
}

// laneCell returns the handoff cell of lane.
func (q *QC) laneCell(lane int) grid.Cell { return grid.LaneCell(q.position, lane) }

func (q *QC) lookup(rawID int) *QCTask {
	if q.current != nil && q.current.RawID == rawID {
		return q.current
	}
	t, _ := q.queue.find(func(t *QCTask) bool { return t.RawID == rawID })
	return t
}

// taskLane returns the lane chosen for rawID, or 0 if none is chosen yet.
func (q *QC) taskLane(rawID int) int {
	if t := q.lookup(rawID); t != nil {
		return t.Lane
	}
	return 0
}

func (q *QC) setTaskLane(rawID, lane int) error {
	t := q.lookup(rawID)
	if t == nil {
		return fmt.Errorf("%s has no task %d: %w", q.name, rawID, ErrInvalidTask)
	}
	t.Lane = lane
	return nil
}

func (q *QC) start() {
	q.env.sim.Process(q.name, q.run)
}

func (q *QC) run(p *sim.Process) error {
	e := q.env
	t := e.times
	e.sim.Data.Set(q.name+sim.SuffixStart, p.Now())

	for {
		priority, task, ok := q.queue.pop()
		if !ok {
			logrus.Infof("(%.3f) %s finished all jobs", p.Now(), q.name)
			break
		}
		q.current = task
		logrus.Infof("(%.3f) %s start processing %s", p.Now(), q.name, task)

		if task.Lane == 0 {
			task.Lane = q.lanes.leastLoaded()
			q.lanes.push(task.Lane, priority)
		}
		if err := e.setCell(p, q.laneCell(task.Lane), priority); err != nil {
			return err
		}
		logrus.Debugf("(%.3f) %s current lanes: %v", p.Now(), q.name, q.lanes)

		bound := func(a *AGV) bool { return a == task.Transporter }
		switch task.Flag {
		case Unload:
			if err := p.Sleep(t.QCReady); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s ready to drop container to %s in task_%d", p.Now(), q.name, task.Transporter.Name(), task.RawID)
			v, err := e.timed(p, q.name+sim.SuffixWait, q.shift.Get(bound))
			if err != nil {
				return err
			}
			agv := v.(*AGV)
			if err := p.Sleep(t.QCLiftDrop); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s dropped container to %s in task_%d", p.Now(), q.name, agv.Name(), task.RawID)
			if _, err := p.Wait(agv.shift.Put(QCEndpoint(q))); err != nil {
				return err
			}
			if err := e.release(p, q.name, q.lanes, task.Lane, priority, q.laneCell(task.Lane)); err != nil {
				return err
			}

		case Load:
			v, err := e.timed(p, q.name+sim.SuffixWait, q.shift.Get(bound))
			if err != nil {
				return err
			}
			agv := v.(*AGV)
			if err := p.Sleep(t.QCLiftDrop); err != nil {
				return err
			}
			logrus.Infof("(%.3f) %s got container from %s in task_%d", p.Now(), q.name, agv.Name(), task.RawID)
			if _, err := p.Wait(agv.shift.Put(QCEndpoint(q))); err != nil {
				return err
			}
			if err := e.release(p, q.name, q.lanes, task.Lane, priority, q.laneCell(task.Lane)); err != nil {
				return err
			}
			if err := p.Sleep(t.QCToShip); err != nil {
				return err
			}
			if err := e.tm.SetDone(task.RawID); err != nil {
				return err
			}
			logrus.Infof("(%.3f) task_%d finished", p.Now(), task.RawID)

		default:
			return fmt.Errorf("%s: task %d flag %d: %w", q.name, task.RawID, task.Flag, ErrInvalidTask)
		}
	}

	e.sim.Data.Set(q.name+sim.SuffixEnd, p.Now())
	return nil
}
