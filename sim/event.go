package sim

import (
	"errors"
	"fmt"
)

// Priority breaks ties between events scheduled for the same simulated instant.
// Lower values fire first.
type Priority int

const (
	// Urgent events fire before Normal events at the same instant.
	Urgent Priority = 0
	// Normal is the class used by Succeed, Fail and Timeout.
	Normal Priority = 1
)

var (
	// ErrAlreadyTriggered is returned when an event is resolved twice.
	ErrAlreadyTriggered = errors.New("event already triggered")
	// ErrNegativeDelay is the failure carried by a Timeout created with a negative delay.
	ErrNegativeDelay = errors.New("negative delay")
)

// Event is a single suspension point. It is resolved exactly once, either with a value
// (Succeed) or a failure (Fail), and is then scheduled on the kernel. When the kernel
// processes it, every registered callback runs in registration order.
type Event struct {
	sim       *Simulator
	callbacks []func(*Event)
	triggered bool
	processed bool
	defused   bool
	value     any
	err       error
}

// NewEvent creates a pending event bound to s.
func NewEvent(s *Simulator) *Event {
	return &Event{sim: s}
}

// Triggered reports whether the event has been resolved (it may not be processed yet).
func (e *Event) Triggered() bool { return e.triggered }

// Processed reports whether the kernel has already run the event's callbacks.
func (e *Event) Processed() bool { return e.processed }

// OK reports whether the event was resolved successfully.
func (e *Event) OK() bool { return e.triggered && e.err == nil }

// Value returns the resolved value. It is nil until the event is triggered.
func (e *Event) Value() any { return e.value }

// Err returns the failure the event was resolved with, if any.
func (e *Event) Err() error { return e.err }

// AddCallback registers fn to run when the event is processed.
// Callbacks added after processing are never invoked.
func (e *Event) AddCallback(fn func(*Event)) {
	if e.processed {
		return
	}
	e.callbacks = append(e.callbacks, fn)
}

// Succeed resolves the event with value and schedules it at the current instant.
func (e *Event) Succeed(value any) error {
	if e.triggered {
		return fmt.Errorf("succeed: %w", ErrAlreadyTriggered)
	}
	e.triggered = true
	e.value = value
	e.sim.schedule(e, Normal, 0)
	return nil
}

// Fail resolves the event with err and schedules it at the current instant.
// Whoever waits on the event receives err.
func (e *Event) Fail(err error) error {
	if e.triggered {
		return fmt.Errorf("fail: %w", ErrAlreadyTriggered)
	}
	if err == nil {
		return errors.New("fail: nil error")
	}
	e.triggered = true
	e.err = err
	e.sim.schedule(e, Normal, 0)
	return nil
}

// Trigger resolves e with the outcome of other.
func (e *Event) Trigger(other *Event) error {
	if other.err != nil {
		return e.Fail(other.err)
	}
	return e.Succeed(other.value)
}

// Timeout returns an event that succeeds with value after delay units of simulated time.
// A negative delay yields an event that fails immediately with ErrNegativeDelay.
func (s *Simulator) Timeout(delay float64, value any) *Event {
	e := NewEvent(s)
	e.triggered = true
	if delay < 0 {
		e.err = fmt.Errorf("%w %v", ErrNegativeDelay, delay)
		s.schedule(e, Normal, 0)
		return e
	}
	e.value = value
	s.schedule(e, Normal, delay)
	return e
}

// AnyOf returns an event that resolves with the outcome of whichever of events is
// processed first.
func (s *Simulator) AnyOf(events ...*Event) *Event {
	first := NewEvent(s)
	for _, e := range events {
		if e.processed {
			_ = first.Trigger(e)
			return first
		}
	}
	for _, e := range events {
		e.AddCallback(func(src *Event) {
			if !first.triggered {
				_ = first.Trigger(src)
			}
		})
	}
	return first
}
