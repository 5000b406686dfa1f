package terminal

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
)

// TaskManager owns the terminal tasks of a run. It derives the facility sub-tasks
// and is the only writer of task status.
type TaskManager struct {
	sim      *sim.Simulator
	tasks    []*Task
	byID     map[int]*Task
	finished *sim.Event
}

// NewTaskManager creates an empty task manager bound to s.
func NewTaskManager(s *sim.Simulator) *TaskManager {
	return &TaskManager{sim: s, byID: make(map[int]*Task)}
}

// Add registers t. Raw ids are unique; every task needs a transporter and
// endpoints consistent with its container flow.
func (m *TaskManager) Add(t *Task) error {
	if t == nil {
		return fmt.Errorf("nil task: %w", ErrInvalidTask)
	}
	if _, ok := m.byID[t.RawID]; ok {
		return fmt.Errorf("task %d already added: %w", t.RawID, ErrInvalidTask)
	}
	if t.Transporter == nil {
		return fmt.Errorf("task %d has no transporter: %w", t.RawID, ErrInvalidTask)
	}
	start, end, err := t.Container.Flow.Endpoints()
	if err != nil {
		return fmt.Errorf("task %d: %w", t.RawID, err)
	}
	if t.Start.Kind != start || t.End.Kind != end {
		return fmt.Errorf("task %d: %s needs %s to %s, got %s to %s: %w",
			t.RawID, t.Container.Flow, start, end, t.Start.Kind, t.End.Kind, ErrInvalidTask)
	}
	t.status = Pending
	m.tasks = append(m.tasks, t)
	m.byID[t.RawID] = t
	return nil
}

// Tasks returns the tasks in insertion order.
func (m *TaskManager) Tasks() []*Task { return append([]*Task(nil), m.tasks...) }

// Task returns the task with rawID.
func (m *TaskManager) Task(rawID int) (*Task, bool) {
	t, ok := m.byID[rawID]
	return t, ok
}

// AssignQC queues an UNLOAD at every task's start crane and a LOAD at its end
// crane. A ship-to-ship move loads onto the container's cycle bay.
func (m *TaskManager) AssignQC() {
	for _, t := range m.tasks {
		if t.Start.Kind == KindQC {
			t.Start.QC.PutTask(t.Priority, &QCTask{RawID: t.RawID, Flag: Unload, Bay: t.Container.Bay, Transporter: t.Transporter})
		}
		if t.End.Kind == KindQC {
			bay := t.Container.Bay
			if t.Container.Flow == ShipCycle {
				bay = t.Container.CycleBay
			}
			t.End.QC.PutTask(t.Priority, &QCTask{RawID: t.RawID, Flag: Load, Bay: bay, Transporter: t.Transporter})
		}
	}
}

// AssignARMG queues an OUT at every task's start yard crane and an ENTER at its
// end yard crane.
func (m *TaskManager) AssignARMG() {
	for _, t := range m.tasks {
		if t.Start.Kind == KindARMG {
			t.Start.ARMG.PutTask(t.Priority, &ARMGTask{RawID: t.RawID, Flag: Out, Transporter: t.Transporter})
		}
		if t.End.Kind == KindARMG {
			t.End.ARMG.PutTask(t.Priority, &ARMGTask{RawID: t.RawID, Flag: Enter, Transporter: t.Transporter})
		}
	}
}

// AssignAGV queues every task on its transporter.
func (m *TaskManager) AssignAGV() {
	for _, t := range m.tasks {
		t.Transporter.PutTask(t.Priority, &AGVTask{RawID: t.RawID, Start: t.Start, End: t.End})
	}
}

// Start marks rawID as being processed.
func (m *TaskManager) Start(rawID int) error {
	t, ok := m.byID[rawID]
	if !ok {
		return fmt.Errorf("start task %d: %w", rawID, ErrInvalidTask)
	}
	if t.status == Pending {
		t.status = Processing
	}
	return nil
}

// SetDone marks rawID as finished. Once every task is finished the Finished
// event fires.
func (m *TaskManager) SetDone(rawID int) error {
	t, ok := m.byID[rawID]
	if !ok {
		return fmt.Errorf("finish task %d: %w", rawID, ErrInvalidTask)
	}
	t.status = Finished
	if m.AllDone() && m.finished != nil && !m.finished.Triggered() {
		logrus.Infof("(%.3f) all %d tasks finished", m.sim.Now(), len(m.tasks))
		_ = m.finished.Succeed(nil)
	}
	return nil
}

// AllDone reports whether every task is finished.
func (m *TaskManager) AllDone() bool {
	for _, t := range m.tasks {
		if t.status != Finished {
			return false
		}
	}
	return true
}

// Finished returns an event that fires once every task is finished.
func (m *TaskManager) Finished() *sim.Event {
	if m.finished == nil {
		m.finished = sim.NewEvent(m.sim)
		if m.AllDone() {
			_ = m.finished.Succeed(nil)
		}
	}
	return m.finished
}
