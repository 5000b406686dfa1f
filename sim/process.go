package sim

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// ProcessFunc is the body of a process. It runs sequentially with respect to every
// other process and suspends only inside Wait.
type ProcessFunc func(p *Process) error

// Process is a long-running activity. The embedded event resolves when the body returns:
// successfully with nil, or with the body's error.
type Process struct {
	*Event
	name string
	fn   ProcessFunc

	target  *Event
	started bool
	done    bool
	killed  bool
	result  error

	wake  chan outcome
	yield chan struct{}
}

type outcome struct {
	value any
	err   error
	kill  bool
}

// Process starts fn as a new process at the current instant, ahead of any Normal event
// scheduled for the same time.
func (s *Simulator) Process(name string, fn ProcessFunc) *Process {
	p := &Process{
		Event: NewEvent(s),
		name:  name,
		fn:    fn,
		wake:  make(chan outcome),
		yield: make(chan struct{}),
	}
	s.procs[p] = struct{}{}

	init := NewEvent(s)
	init.triggered = true
	init.callbacks = []func(*Event){p.resume}
	s.schedule(init, Urgent, 0)
	return p
}

// Name returns the name the process was started with.
func (p *Process) Name() string { return p.name }

// Sim returns the kernel the process runs on.
func (p *Process) Sim() *Simulator { return p.sim }

// Now returns the current simulated time.
func (p *Process) Now() float64 { return p.sim.Clock }

// Wait suspends the process until ev is processed and returns its outcome.
// An event that was already processed returns immediately.
func (p *Process) Wait(ev *Event) (any, error) {
	if ev.processed {
		return ev.value, ev.err
	}
	p.target = ev
	p.yield <- struct{}{}
	o := <-p.wake
	if o.kill {
		runtime.Goexit()
	}
	return o.value, o.err
}

// Sleep suspends the process for delay units of simulated time.
func (p *Process) Sleep(delay float64) error {
	_, err := p.Wait(p.sim.Timeout(delay, nil))
	return err
}

// resume hands control to the process goroutine and blocks until it suspends again
// or finishes.
func (p *Process) resume(ev *Event) {
	s := p.sim
	prev := s.active
	s.active = p
	if !p.started {
		p.started = true
		go p.run()
	} else {
		p.wake <- outcome{value: ev.value, err: ev.err}
	}
	<-p.yield
	s.active = prev

	if !p.done {
		p.target.AddCallback(p.resume)
		return
	}
	delete(s.procs, p)
	if p.result != nil {
		logrus.Warnf("[t=%.3f] process %s failed: %v", s.Clock, p.name, p.result)
		s.failures = append(s.failures, p.result)
		p.defused = true
		_ = p.Event.Fail(p.result)
		return
	}
	_ = p.Event.Succeed(nil)
}

func (p *Process) run() {
	defer func() {
		if r := recover(); r != nil {
			p.result = fmt.Errorf("process %s panicked: %v", p.name, r)
		}
		if p.killed {
			return
		}
		p.done = true
		p.yield <- struct{}{}
	}()
	p.result = p.fn(p)
}

// kill unwinds a suspended process. Only the kernel calls it, during teardown.
func (p *Process) kill() {
	if !p.started || p.done {
		return
	}
	p.killed = true
	p.wake <- outcome{kill: true}
}
