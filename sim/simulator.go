// sim/simulator.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTooSlow is the pacing fault: the kernel fell behind the wall clock in strict mode.
var ErrTooSlow = errors.New("simulation too slow for real time")

// errEmptySchedule ends a run: nothing is scheduled and no external source is pending.
var errEmptySchedule = errors.New("empty schedule")

// errHorizon ends a run: the next event lies beyond the configured horizon.
var errHorizon = errors.New("horizon reached")

// Simulator is the event kernel. It owns simulated time, the event queue, the set of
// live processes and the external readiness sources multiplexed into the run loop.
//
// Only one process executes at a time: the kernel hands control to a process and
// blocks until it suspends again, so ordering is decided by the event queue alone.
type Simulator struct {
	// Clock is the current simulated time.
	Clock   float64
	Horizon float64
	// Data holds the timing metrics facilities record during the run.
	Data *Metrics

	queue       *EventHeap
	nextEventID uint64

	factor    float64
	strict    bool
	envStart  float64
	realStart time.Time
	wall      func() time.Time

	ready   chan readiness
	stopped chan struct{}
	sources map[*Source]struct{}

	active    *Process
	procs     map[*Process]struct{}
	failures  []error
	suspended []string
	finished  bool
}

// NewSimulator creates a kernel from cfg. The wall-clock origin is taken now;
// call Sync right before Run if setup takes noticeable time.
func NewSimulator(cfg Config) *Simulator {
	wall := cfg.WallClock
	if wall == nil {
		wall = time.Now
	}
	horizon := cfg.Horizon
	if horizon == 0 {
		horizon = math.Inf(1)
	}
	return &Simulator{
		Clock:     cfg.InitialTime,
		Horizon:   horizon,
		Data:      NewMetrics(),
		queue:     NewEventHeap(),
		factor:    cfg.Factor,
		strict:    cfg.Strict,
		envStart:  cfg.InitialTime,
		realStart: wall(),
		wall:      wall,
		ready:     make(chan readiness, 64),
		stopped:   make(chan struct{}),
		sources:   make(map[*Source]struct{}),
		procs:     make(map[*Process]struct{}),
	}
}

// Now returns the current simulated time.
func (s *Simulator) Now() float64 { return s.Clock }

// Factor returns the wall-clock seconds per simulated time unit.
func (s *Simulator) Factor() float64 { return s.factor }

// ActiveProcess returns the process currently executing, or nil between steps.
func (s *Simulator) ActiveProcess() *Process { return s.active }

// Sync resets the wall-clock origin to the current instant.
func (s *Simulator) Sync() {
	s.realStart = s.wall()
	s.envStart = s.Clock
}

// Schedule pushes an already-resolved event into the queue after delay.
func (s *Simulator) Schedule(e *Event, priority Priority, delay float64) {
	s.schedule(e, priority, delay)
}

func (s *Simulator) schedule(e *Event, priority Priority, delay float64) {
	s.nextEventID++
	s.queue.Schedule(&scheduled{
		time:     s.Clock + delay,
		priority: priority,
		id:       s.nextEventID,
		event:    e,
	})
}

// Peek returns the time of the next scheduled event, or +Inf if none.
func (s *Simulator) Peek() float64 {
	if next := s.queue.Peek(); next != nil {
		return next.time
	}
	return math.Inf(1)
}

// Busy reports whether anything other than the caller can still make progress:
// an event is queued or an external source is pending.
func (s *Simulator) Busy() bool {
	return s.queue.Len() > 0 || len(s.sources) > 0
}

// Failures returns the errors that terminated processes or went unhandled.
func (s *Simulator) Failures() []error { return s.failures }

// Suspended returns the names of processes that were still waiting when the run ended.
func (s *Simulator) Suspended() []string { return s.suspended }

// Run drives the simulation until the queue is empty and no external source is
// registered, or until the horizon is reached. It returns the final simulated time.
// A Simulator runs once: processes still suspended at the end are torn down.
func (s *Simulator) Run() (float64, error) {
	return s.RunContext(context.Background())
}

// RunContext is Run with cancellation. A cancelled context aborts the run with ctx.Err().
func (s *Simulator) RunContext(ctx context.Context) (float64, error) {
	if s.finished {
		return s.Clock, errors.New("simulator already ran")
	}
	defer s.teardown()
	for {
		err := s.step(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, errEmptySchedule), errors.Is(err, errHorizon):
			logrus.Debugf("[t=%.3f] simulation ended: %v", s.Clock, err)
			return s.Clock, nil
		default:
			logrus.Errorf("[t=%.3f] simulation aborted: %v", s.Clock, err)
			return s.Clock, err
		}
	}
}

// step processes exactly one event, serving external readiness while it paces
// against the wall clock.
func (s *Simulator) step(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := s.queue.Peek()
		if next == nil {
			if len(s.sources) == 0 {
				return errEmptySchedule
			}
			select {
			case r := <-s.ready:
				s.advanceToWall()
				s.deliver(r)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if next.time > s.Horizon {
			return errHorizon
		}

		if s.factor > 0 {
			deadline := s.realStart.Add(seconds((next.time - s.envStart) * s.factor))
			lag := s.wall().Sub(deadline)
			if s.strict && lag > seconds(s.factor) {
				return fmt.Errorf("%w (%.3fs)", ErrTooSlow, lag.Seconds())
			}
			if lag < 0 {
				timer := time.NewTimer(-lag)
				select {
				case r := <-s.ready:
					timer.Stop()
					s.advanceToWall()
					s.deliver(r)
					continue
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		} else {
			select {
			case r := <-s.ready:
				s.deliver(r)
				continue
			default:
			}
		}

		s.process(s.queue.PopNext())
		return nil
	}
}

func (s *Simulator) process(item *scheduled) {
	s.Clock = item.time
	ev := item.event
	logrus.Tracef("[t=%.3f] processing event %d", s.Clock, item.id)

	callbacks := ev.callbacks
	ev.callbacks = nil
	ev.processed = true
	for _, cb := range callbacks {
		cb(ev)
	}

	if ev.err != nil && len(callbacks) == 0 && !ev.defused {
		logrus.Warnf("[t=%.3f] unhandled event failure: %v", s.Clock, ev.err)
		s.failures = append(s.failures, ev.err)
	}
}

// advanceToWall moves the clock to the simulated instant matching the wall clock,
// never backwards.
func (s *Simulator) advanceToWall() {
	if s.factor <= 0 {
		return
	}
	t := s.envStart + s.wall().Sub(s.realStart).Seconds()/s.factor
	if next := s.Peek(); t > next {
		t = next
	}
	if t > s.Clock {
		s.Clock = t
	}
}

func (s *Simulator) teardown() {
	s.finished = true
	close(s.stopped)
	for p := range s.procs {
		if !p.started {
			continue
		}
		s.suspended = append(s.suspended, p.name)
	}
	sort.Strings(s.suspended)
	if len(s.suspended) > 0 {
		logrus.Warnf("[t=%.3f] %d process(es) still suspended at shutdown: %v", s.Clock, len(s.suspended), s.suspended)
	}
	for p := range s.procs {
		p.kill()
	}
	s.procs = map[*Process]struct{}{}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
