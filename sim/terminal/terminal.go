// Package terminal assembles a port terminal run: quay cranes, yard cranes with
// their holders and AGVs, driven by a task manager over the sim kernel. AGV legs
// are executed remotely by a traffic dispatcher.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
)

// ErrFacilityLimit is returned when adding a facility beyond the configured count.
var ErrFacilityLimit = errors.New("facility limit reached")

// Config is the run configuration.
type Config struct {
	// Factor is the number of wall-clock seconds per simulated time unit. Zero runs
	// unpaced.
	Factor float64
	// Strict aborts the run when the kernel falls behind the wall clock.
	Strict bool
	// Horizon stops the run at this simulated time. Zero means no horizon.
	Horizon float64
	// NumQC, NumARMG and NumAGV bound the facilities of each kind. Zero is unbounded.
	NumQC   int
	NumARMG int
	NumAGV  int
	// Seed drives the service-time draw.
	Seed int64
	// Service holds the service-time distributions. The zero value selects
	// DefaultServiceDistributions.
	Service ServiceDistributions
	// Dispatcher executes AGV legs and receives gate updates and clock syncs.
	Dispatcher Traffic
	// WallClock overrides time.Now for pacing.
	WallClock func() time.Time
}

// CraneSpec describes a quay or yard crane of a job.
type CraneSpec struct {
	ID       int
	Position int
	Lanes    []int
}

// VehicleSpec describes an AGV of a job.
type VehicleSpec struct {
	ID       int
	Position int
}

// TaskSpec describes a terminal task of a job. Start and End are crane ids whose
// kinds follow from the container flow; Transporter is an AGV id.
type TaskSpec struct {
	RawID       int
	Priority    int
	Container   Container
	Start       int
	End         int
	Transporter int
}

// Job is a fully resolved run descriptor.
type Job struct {
	QC    []CraneSpec
	ARMG  []CraneSpec
	AGV   []VehicleSpec
	Tasks []TaskSpec
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	RawID       int
	Flow        Flow
	Priority    int
	Transporter string
	Status      Status
}

// Result is the outcome of a run.
type Result struct {
	RunID   string
	Elapsed float64
	AllDone bool
	// Metrics holds "<facility>_start", "_end", "_wait" and "<holder>_occupied".
	Metrics   map[string]float64
	Summary   []sim.Stat
	Tasks     []TaskResult
	Failures  []error
	Suspended []string
	Service   ServiceTimes
}

type starter interface {
	start()
}

// Terminal is one run: its kernel, facilities and tasks. It runs once.
type Terminal struct {
	cfg   Config
	env   *env
	clock *Clock

	qcs   map[int]*QC
	armgs map[int]*ARMG
	agvs  map[int]*AGV
	order []starter

	assigned bool
	ran      bool
}

// New creates an empty terminal.
func New(cfg Config) (*Terminal, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("terminal: no dispatcher configured")
	}
	if cfg.Service == (ServiceDistributions{}) {
		cfg.Service = DefaultServiceDistributions()
	}
	s := sim.NewSimulator(sim.Config{
		Factor:    cfg.Factor,
		Strict:    cfg.Strict,
		Horizon:   cfg.Horizon,
		WallClock: cfg.WallClock,
	})
	times := cfg.Service.Draw(sim.NewStreams(cfg.Seed).Service())
	logrus.Debugf("service times: %+v", times)

	e := &env{
		sim:     s,
		ctx:     context.Background(),
		traffic: cfg.Dispatcher,
		tm:      NewTaskManager(s),
		times:   times,
		speed:   wireSpeed(times.AGVSpeed, cfg.Factor),
	}
	return &Terminal{
		cfg:   cfg,
		env:   e,
		clock: &Clock{env: e, name: "clock"},
		qcs:   make(map[int]*QC),
		armgs: make(map[int]*ARMG),
		agvs:  make(map[int]*AGV),
	}, nil
}

// Simulator returns the run's kernel.
func (t *Terminal) Simulator() *sim.Simulator { return t.env.sim }

// TaskManager returns the run's task manager.
func (t *Terminal) TaskManager() *TaskManager { return t.env.tm }

// ServiceTimes returns the service times drawn for the run.
func (t *Terminal) ServiceTimes() ServiceTimes { return t.env.times }

// Speed returns the AGV speed sent with every leg.
func (t *Terminal) Speed() int { return t.env.speed }

// QC returns the quay crane with id.
func (t *Terminal) QC(id int) (*QC, bool) {
	q, ok := t.qcs[id]
	return q, ok
}

// ARMG returns the yard crane with id.
func (t *Terminal) ARMG(id int) (*ARMG, bool) {
	g, ok := t.armgs[id]
	return g, ok
}

// AGV returns the vehicle with id.
func (t *Terminal) AGV(id int) (*AGV, bool) {
	a, ok := t.agvs[id]
	return a, ok
}

// AGVNames returns the names of the vehicles in the order they were added.
func (t *Terminal) AGVNames() []string {
	var names []string
	for _, f := range t.order {
		if a, ok := f.(*AGV); ok {
			names = append(names, a.Name())
		}
	}
	return names
}

func checkLanes(position int, lanes []int) error {
	if len(lanes) == 0 {
		return fmt.Errorf("no lanes: %w", ErrInvalidLane)
	}
	for _, lane := range lanes {
		if lane < 1 || !grid.LaneCell(position, lane).Valid() {
			return fmt.Errorf("lane %d at position %d: %w", lane, position, ErrInvalidLane)
		}
	}
	return nil
}

func checkPosition(position int) error {
	if !grid.Cell(position).Valid() {
		return fmt.Errorf("position %d: %w", position, ErrInvalidPosition)
	}
	return nil
}

func (t *Terminal) checkAdd(kind Kind, id, limit, have int, exists bool) error {
	if t.assigned {
		return fmt.Errorf("add %s %d after tasks were assigned: %w", kind, id, ErrInvalidTask)
	}
	if exists {
		return fmt.Errorf("%s %d: %w", kind, id, ErrDuplicateFacility)
	}
	if limit > 0 && have >= limit {
		return fmt.Errorf("%s %d: at most %d: %w", kind, id, limit, ErrFacilityLimit)
	}
	return nil
}

// AddQC adds a quay crane at position serving lanes.
func (t *Terminal) AddQC(id, position int, lanes []int) (*QC, error) {
	_, exists := t.qcs[id]
	if err := t.checkAdd(KindQC, id, t.cfg.NumQC, len(t.qcs), exists); err != nil {
		return nil, err
	}
	if err := checkPosition(position); err != nil {
		return nil, err
	}
	if err := checkLanes(position, lanes); err != nil {
		return nil, err
	}
	q, err := newQC(t.env, id, position, lanes)
	if err != nil {
		return nil, err
	}
	t.qcs[id] = q
	t.order = append(t.order, q)
	return q, nil
}

// AddARMG adds a yard crane at position with one holder per lane.
func (t *Terminal) AddARMG(id, position int, lanes []int) (*ARMG, error) {
	_, exists := t.armgs[id]
	if err := t.checkAdd(KindARMG, id, t.cfg.NumARMG, len(t.armgs), exists); err != nil {
		return nil, err
	}
	if err := checkPosition(position); err != nil {
		return nil, err
	}
	if err := checkLanes(position, lanes); err != nil {
		return nil, err
	}
	g, err := newARMG(t.env, id, position, lanes)
	if err != nil {
		return nil, err
	}
	t.armgs[id] = g
	t.order = append(t.order, g)
	return g, nil
}

// AddAGV adds a vehicle parked at position.
func (t *Terminal) AddAGV(id, position int) (*AGV, error) {
	_, exists := t.agvs[id]
	if err := t.checkAdd(KindAGV, id, t.cfg.NumAGV, len(t.agvs), exists); err != nil {
		return nil, err
	}
	if err := checkPosition(position); err != nil {
		return nil, err
	}
	a, err := newAGV(t.env, id, grid.Cell(position))
	if err != nil {
		return nil, err
	}
	t.agvs[id] = a
	t.order = append(t.order, a)
	return a, nil
}

func (t *Terminal) endpoint(kind Kind, id int) (Endpoint, error) {
	switch kind {
	case KindQC:
		if q, ok := t.qcs[id]; ok {
			return QCEndpoint(q), nil
		}
	case KindARMG:
		if g, ok := t.armgs[id]; ok {
			return ARMGEndpoint(g), nil
		}
	}
	return Endpoint{}, fmt.Errorf("%s %d: %w", kind, id, ErrUnknownFacility)
}

// AddTask resolves spec against the added facilities and registers the task.
func (t *Terminal) AddTask(spec TaskSpec) (*Task, error) {
	if t.assigned {
		return nil, fmt.Errorf("add task %d after tasks were assigned: %w", spec.RawID, ErrInvalidTask)
	}
	startKind, endKind, err := spec.Container.Flow.Endpoints()
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", spec.RawID, err)
	}
	start, err := t.endpoint(startKind, spec.Start)
	if err != nil {
		return nil, fmt.Errorf("task %d start: %w", spec.RawID, err)
	}
	end, err := t.endpoint(endKind, spec.End)
	if err != nil {
		return nil, fmt.Errorf("task %d end: %w", spec.RawID, err)
	}
	agv, ok := t.agvs[spec.Transporter]
	if !ok {
		return nil, fmt.Errorf("task %d transporter agv %d: %w", spec.RawID, spec.Transporter, ErrUnknownFacility)
	}
	task := &Task{
		RawID:       spec.RawID,
		Priority:    spec.Priority,
		Container:   spec.Container,
		Start:       start,
		End:         end,
		Transporter: agv,
	}
	if err := t.env.tm.Add(task); err != nil {
		return nil, err
	}
	return task, nil
}

// Apply adds every facility and task of job, then assigns the tasks.
func (t *Terminal) Apply(job Job) error {
	for _, c := range job.QC {
		if _, err := t.AddQC(c.ID, c.Position, c.Lanes); err != nil {
			return err
		}
	}
	for _, c := range job.ARMG {
		if _, err := t.AddARMG(c.ID, c.Position, c.Lanes); err != nil {
			return err
		}
	}
	for _, v := range job.AGV {
		if _, err := t.AddAGV(v.ID, v.Position); err != nil {
			return err
		}
	}
	for _, spec := range job.Tasks {
		if _, err := t.AddTask(spec); err != nil {
			return err
		}
	}
	t.Assign()
	return nil
}

// Assign derives the facility sub-tasks of every registered task. It runs once;
// no facility or task can be added afterwards.
func (t *Terminal) Assign() {
	if t.assigned {
		return
	}
	t.assigned = true
	tm := t.env.tm
	tm.AssignQC()
	tm.AssignARMG()
	tm.AssignAGV()
}

// Run assigns pending tasks, starts every facility and drives the kernel until
// nothing is left to run. Facility failures are reported in the result; only
// kernel faults and cancellation are returned as errors.
func (t *Terminal) Run(ctx context.Context) (*Result, error) {
	if t.ran {
		return nil, errors.New("terminal already ran")
	}
	t.ran = true
	t.Assign()
	t.env.ctx = ctx

	s := t.env.sim
	t.clock.start()
	for _, f := range t.order {
		f.start()
	}
	s.Sync()
	now, err := s.RunContext(ctx)

	res := &Result{
		RunID:     uuid.NewString(),
		Elapsed:   now,
		AllDone:   t.env.tm.AllDone(),
		Metrics:   s.Data.Snapshot(),
		Summary:   s.Data.Summary(),
		Failures:  s.Failures(),
		Suspended: s.Suspended(),
		Service:   t.env.times,
	}
	for _, task := range t.env.tm.Tasks() {
		res.Tasks = append(res.Tasks, TaskResult{
			RawID:       task.RawID,
			Flow:        task.Container.Flow,
			Priority:    task.Priority,
			Transporter: task.Transporter.Name(),
			Status:      task.Status(),
		})
	}
	logrus.Infof("run %s ended at %.3f: all done %v, %d failure(s)", res.RunID, now, res.AllDone, len(res.Failures))
	if err != nil {
		return res, fmt.Errorf("run %s: %w", res.RunID, err)
	}
	return res, nil
}
