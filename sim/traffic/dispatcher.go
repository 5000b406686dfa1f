package traffic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim/grid"
	"github.com/easyterm/easyterm/sim/trace"
)

// Config holds the dispatcher's network and timing settings.
type Config struct {
	Addr string // TCP listen address, e.g. "127.0.0.1:8001"
	// GateTimeout bounds the wait for a destination gate to admit a move.
	GateTimeout time.Duration
	// ConfirmTimeout bounds the wait for a vehicle to log in and to confirm each arrival.
	ConfirmTimeout time.Duration
	// HeartbeatInterval is the period of clock messages.
	HeartbeatInterval time.Duration
	// CacheSize bounds the route cache.
	CacheSize int
	// Trace selects decision tracing ("none" or "decisions").
	Trace trace.TraceLevel
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Addr:              "127.0.0.1:8001",
		GateTimeout:       60 * time.Second,
		ConfirmTimeout:    60 * time.Second,
		HeartbeatInterval: 500 * time.Millisecond,
		CacheSize:         grid.DefaultCacheSize,
	}
}

// withDefaults fills zero durations and sizes from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.GateTimeout <= 0 {
		c.GateTimeout = def.GateTimeout
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = def.ConfirmTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	return c
}

// Dispatcher arbitrates AGV moves: it routes them, serializes buffer-lane crossings
// and releases each handoff in priority order.
//
// Thread-safety: safe for concurrent use.
type Dispatcher struct {
	cfg      Config
	router   *grid.Router
	routes   *grid.Cache
	gate     *Gate
	vehicles *vehicleTable
	trace    *trace.DispatchTrace

	// parking serializes free-cell selection with the barrier claiming it.
	parking sync.Mutex

	clockMu sync.RWMutex
	now     float64
}

// NewDispatcher creates a dispatcher with an empty grid.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	cfg = cfg.withDefaults()
	if !trace.IsValidTraceLevel(string(cfg.Trace)) {
		return nil, fmt.Errorf("unknown trace level %q", cfg.Trace)
	}
	router := grid.NewRouter()
	routes, err := grid.NewCache(router, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		cfg:      cfg,
		router:   router,
		routes:   routes,
		gate:     NewGate(),
		vehicles: newVehicleTable(),
		trace:    trace.NewDispatchTrace(trace.TraceConfig{Level: cfg.Trace}),
	}, nil
}

// Router exposes the barrier state.
func (d *Dispatcher) Router() *grid.Router { return d.router }

// Gate exposes the cell priority gate.
func (d *Dispatcher) Gate() *Gate { return d.gate }

// Trace returns the decision trace. It records nothing unless tracing is enabled.
func (d *Dispatcher) Trace() *trace.DispatchTrace { return d.trace }

// Vehicles returns the names of logged-in vehicles.
func (d *Dispatcher) Vehicles() []string { return d.vehicles.names() }

// Now returns the last time value received through sync.
func (d *Dispatcher) Now() float64 {
	d.clockMu.RLock()
	defer d.clockMu.RUnlock()
	return d.now
}

// SetNow records an advisory time value.
func (d *Dispatcher) SetNow(now float64) {
	d.clockMu.Lock()
	defer d.clockMu.Unlock()
	d.now = now
}

// SetCell publishes priority as the gate value of cell.
func (d *Dispatcher) SetCell(cell grid.Cell, priority int) {
	d.gate.Set(cell, priority)
	d.trace.RecordGate(trace.GateRecord{Cell: int(cell), Priority: priority, Clock: d.Now()})
	logrus.Infof("traffic: current priority of cell %d updated to %d", cell, priority)
}

// Go plans and executes one leg for a logged-in vehicle and returns the cell it
// ended on. For a return leg (FlagReturn) the destination is the first free
// buffer-lane cell, and the barrier set on it stays until that cell is crossed again.
func (d *Dispatcher) Go(ctx context.Context, req GoRequest) (cell grid.Cell, err error) {
	log := logrus.WithFields(logrus.Fields{"agv": req.AGV, "priority": req.Priority, "flag": req.Flag})
	rec := trace.LegRecord{
		AGV:      req.AGV,
		Clock:    d.Now(),
		Priority: req.Priority,
		Flag:     req.Flag,
		Start:    int(req.Start),
		End:      int(req.End),
		Split:    -1,
	}
	defer func() {
		rec.Accepted = err == nil
		if err != nil {
			rec.Reason = err.Error()
		}
		d.trace.RecordLeg(rec)
	}()

	v, err := d.vehicles.lookup(ctx, req.AGV, d.cfg.ConfirmTimeout)
	if err != nil {
		return 0, err
	}

	path, cost, split, end, err := d.plan(req)
	if err != nil {
		log.WithError(err).Errorf("traffic: no path from %d to %d", req.Start, req.End)
		return 0, err
	}
	rec.End, rec.PathLen, rec.Cost, rec.Split = int(end), len(path), cost, split
	log.Infof("traffic: path for %s from %d to %d, split %d: %v", req.AGV, req.Start, end, split, path)

	barred := split > 0
	release := func() {
		if barred {
			d.router.RemoveBarrier(path[split])
			barred = false
			log.Infof("traffic: cell %d released, barriers %v", path[split], d.router.Barriers())
		}
	}

	if split > 0 {
		if err := d.move(ctx, v, path[:split+1], req); err != nil {
			release()
			return 0, err
		}
	}

	if req.Flag == FlagReturn {
		return end, nil
	}

	current, _ := d.gate.Get(end)
	log.Infof("traffic: %s priority %d waits for cell %d at priority %d", req.AGV, req.Priority, end, current)
	gctx, cancel := context.WithTimeout(ctx, d.cfg.GateTimeout)
	err = d.gate.Wait(gctx, end, req.Priority)
	cancel()
	if err != nil {
		release()
		return 0, fmt.Errorf("%s at cell %d: %w", req.AGV, end, ErrGateTimeout)
	}

	if split < len(path)-1 {
		from := split
		if from < 0 {
			from = 0
		}
		if err := d.move(ctx, v, path[from:], req); err != nil {
			release()
			return 0, err
		}
		release()
	}
	return end, nil
}

// plan resolves the destination, routes to it and claims the crossing cell.
func (d *Dispatcher) plan(req GoRequest) (path grid.Path, cost, split int, end grid.Cell, err error) {
	end = req.End
	if req.Flag == FlagReturn {
		d.parking.Lock()
		defer d.parking.Unlock()
		free, err := d.router.Free()
		if err != nil {
			return nil, 0, -1, 0, err
		}
		end = free
		logrus.Debugf("traffic: %s returns to free cell %d, barriers %v", req.AGV, end, d.router.Barriers())
	}

	path, cost, err = d.routes.Route(req.Start, end)
	if err != nil {
		return nil, cost, -1, 0, err
	}
	split = path.Split()
	if split > 0 {
		if err := d.router.SetBarrier(path[split]); err != nil {
			return nil, cost, -1, 0, err
		}
		logrus.Infof("traffic: cell %d blocked, barriers %v", path[split], d.router.Barriers())
	}
	return path, cost, split, end, nil
}

// move pushes one path segment and waits until the vehicle confirms its last cell.
func (d *Dispatcher) move(ctx context.Context, v *Vehicle, segment grid.Path, req GoRequest) error {
	if err := v.Push(Directive{Path: segment.Ints(), Speed: req.Speed, Flag: req.Flag}); err != nil {
		return err
	}
	logrus.Debugf("traffic: sent path to %s %v, flag %d", v.Name(), segment, req.Flag)

	cctx, cancel := context.WithTimeout(ctx, d.cfg.ConfirmTimeout)
	defer cancel()
	msg, err := v.Await(cctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s to cell %d: %w", v.Name(), segment.Last(), ErrConfirmTimeout)
		}
		return err
	}
	logrus.Debugf("traffic: %s responded %s", v.Name(), msg)
	if msg != strconv.Itoa(int(segment.Last())) {
		logrus.Errorf("traffic: %s responded wrong cell %s, expected %d", v.Name(), msg, segment.Last())
		return fmt.Errorf("%s confirmed %q, expected %d: %w", v.Name(), msg, segment.Last(), ErrProtocol)
	}
	return nil
}
