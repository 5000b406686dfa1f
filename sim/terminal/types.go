package terminal

import (
	"errors"
	"fmt"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
)

var (
	// ErrDeadlock is returned by an AGV process when the dispatcher refused a move.
	ErrDeadlock = errors.New("traffic deadlock")
	// ErrInvalidPosition is returned for a facility placed outside the grid.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrInvalidLane is returned for a missing lane list or a lane that maps outside the grid.
	ErrInvalidLane = errors.New("invalid lane")
	// ErrUnknownFacility is returned when a task references a facility that was never added.
	ErrUnknownFacility = errors.New("unknown facility")
	// ErrDuplicateFacility is returned when a facility id is added twice.
	ErrDuplicateFacility = errors.New("duplicate facility")
	// ErrInvalidTask is returned for a malformed task or an unknown raw id.
	ErrInvalidTask = errors.New("invalid task")
)

// Status is the lifecycle state of a terminal task.
type Status int

const (
	Pending Status = iota
	Processing
	Finished
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Processing:
		return "PROCESSING"
	case Finished:
		return "FINISHED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Flow is the container movement a task performs.
type Flow int

const (
	// Outport moves a container from the yard to a ship (ARMG to QC).
	Outport Flow = 1
	// Inport moves a container from a ship to the yard (QC to ARMG).
	Inport Flow = 2
	// ShipCycle moves a container between two quay cranes.
	ShipCycle Flow = 3
	// YardCycle moves a container between two yard cranes.
	YardCycle Flow = 4
)

// Endpoints returns the facility kinds at the start and end of the flow.
func (f Flow) Endpoints() (start, end Kind, err error) {
	switch f {
	case Outport:
		return KindARMG, KindQC, nil
	case Inport:
		return KindQC, KindARMG, nil
	case ShipCycle:
		return KindQC, KindQC, nil
	case YardCycle:
		return KindARMG, KindARMG, nil
	}
	return 0, 0, fmt.Errorf("flow %d: %w", int(f), ErrInvalidTask)
}

func (f Flow) String() string {
	switch f {
	case Outport:
		return "OUTPORT"
	case Inport:
		return "INPORT"
	case ShipCycle:
		return "SHIPCYCLE"
	case YardCycle:
		return "YARDCYCLE"
	}
	return fmt.Sprintf("Flow(%d)", int(f))
}

// QCFlag tells a quay crane whether it loads or unloads the ship.
type QCFlag int

const (
	Load   QCFlag = 1
	Unload QCFlag = 2
)

// ARMGFlag tells a yard crane whether the container enters or leaves the yard.
type ARMGFlag int

const (
	Enter ARMGFlag = 1
	Out   ARMGFlag = 2
)

// Container is the record a task moves.
type Container struct {
	ID        string
	Flow      Flow
	Bay       int
	CycleBay  int
	Yard      int
	CycleYard int
}

// Task is a terminal-level container move. Only the TaskManager changes its status.
type Task struct {
	RawID       int
	Priority    int
	Container   Container
	Start       Endpoint
	End         Endpoint
	Transporter *AGV
	status      Status
}

// Status returns the task's lifecycle state.
func (t *Task) Status() Status { return t.status }

func (t *Task) String() string {
	return fmt.Sprintf("<Task(raw_id=%d, priority=%d, flow=%s, start=%s, end=%s)>", t.RawID, t.Priority, t.Container.Flow, t.Start.Name(), t.End.Name())
}

// QCTask is a quay crane's share of a task.
type QCTask struct {
	RawID       int
	Flag        QCFlag
	Bay         int
	Lane        int
	Transporter *AGV
}

func (t *QCTask) String() string {
	return fmt.Sprintf("<QCTask(raw_id=%d, flag=%d, bay=%d, lane=%d, transporter=%s)>", t.RawID, t.Flag, t.Bay, t.Lane, t.Transporter.Name())
}

// ARMGTask is a yard crane's (and its holder's) share of a task.
type ARMGTask struct {
	RawID       int
	Flag        ARMGFlag
	Lane        int
	Transporter *AGV
}

func (t *ARMGTask) String() string {
	return fmt.Sprintf("<ARMGTask(raw_id=%d, flag=%d, lane=%d, transporter=%s)>", t.RawID, t.Flag, t.Lane, t.Transporter.Name())
}

// AGVTask is a vehicle's share of a task: pick up at Start, drop at End.
type AGVTask struct {
	RawID int
	Start Endpoint
	End   Endpoint
}

func (t *AGVTask) String() string {
	return fmt.Sprintf("<AGVTask(raw_id=%d, start=%s, end=%s)>", t.RawID, t.Start.Name(), t.End.Name())
}

// Kind tags the facility an Endpoint refers to.
type Kind int

const (
	KindQC Kind = iota + 1
	KindARMG
	KindHolder
	KindAGV
)

func (k Kind) String() string {
	switch k {
	case KindQC:
		return "qc"
	case KindARMG:
		return "armg"
	case KindHolder:
		return "holder"
	case KindAGV:
		return "agv"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Endpoint refers to exactly one facility, selected by Kind.
type Endpoint struct {
	Kind   Kind
	QC     *QC
	ARMG   *ARMG
	Holder *Holder
	AGV    *AGV
}

// QCEndpoint refers to q.
func QCEndpoint(q *QC) Endpoint { return Endpoint{Kind: KindQC, QC: q} }

// ARMGEndpoint refers to g.
func ARMGEndpoint(g *ARMG) Endpoint { return Endpoint{Kind: KindARMG, ARMG: g} }

// HolderEndpoint refers to h.
func HolderEndpoint(h *Holder) Endpoint { return Endpoint{Kind: KindHolder, Holder: h} }

// AGVEndpoint refers to a.
func AGVEndpoint(a *AGV) Endpoint { return Endpoint{Kind: KindAGV, AGV: a} }

// Name returns the referenced facility's name.
func (e Endpoint) Name() string {
	switch e.Kind {
	case KindQC:
		return e.QC.Name()
	case KindARMG:
		return e.ARMG.Name()
	case KindHolder:
		return e.Holder.Name()
	case KindAGV:
		return e.AGV.Name()
	}
	return "<none>"
}

// Position returns the referenced facility's base cell.
func (e Endpoint) Position() int {
	switch e.Kind {
	case KindQC:
		return e.QC.Position()
	case KindARMG:
		return e.ARMG.Position()
	case KindHolder:
		return e.Holder.Position()
	case KindAGV:
		return e.AGV.Position()
	}
	return 0
}

// handoffCell returns the cell an AGV stops on to be served on lane.
func (e Endpoint) handoffCell(lane int) grid.Cell {
	switch e.Kind {
	case KindQC:
		return e.QC.laneCell(lane)
	case KindARMG:
		return e.ARMG.laneCell(lane)
	case KindHolder:
		return e.Holder.laneCell()
	}
	return 0
}

// dock announces a at the endpoint. Only quay cranes and holders serve AGVs.
func (e Endpoint) dock(a *AGV) *sim.Event {
	switch e.Kind {
	case KindQC:
		return e.QC.shift.Put(a)
	case KindHolder:
		return e.Holder.shift.Put(a)
	}
	ev := sim.NewEvent(a.env.sim)
	_ = ev.Fail(fmt.Errorf("%s cannot serve %s: %w", e.Name(), a.Name(), ErrInvalidTask))
	return ev
}
