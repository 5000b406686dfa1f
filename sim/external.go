package sim

import "github.com/sirupsen/logrus"

// readiness is one notification from an external source.
type readiness struct {
	src   *Source
	value any
	err   error
}

// Source is an external readiness source (a socket, a blocking call) multiplexed into
// the run loop. While at least one source is registered the kernel keeps running even
// with an empty event queue.
type Source struct {
	sim      *Simulator
	name     string
	callback func(value any, err error)
}

// Register adds a source. callback runs on the kernel goroutine, at the simulated time
// the notification is observed, each time Ready is called.
func (s *Simulator) Register(name string, callback func(value any, err error)) *Source {
	src := &Source{sim: s, name: name, callback: callback}
	s.sources[src] = struct{}{}
	logrus.Debugf("[t=%.3f] registered source %s", s.Clock, name)
	return src
}

// Unregister removes src. Pending notifications from it are dropped. Unregistering
// twice is a no-op.
func (s *Simulator) Unregister(src *Source) {
	if _, ok := s.sources[src]; !ok {
		return
	}
	delete(s.sources, src)
	logrus.Debugf("[t=%.3f] unregistered source %s", s.Clock, src.name)
}

// Name returns the name the source was registered with.
func (src *Source) Name() string { return src.name }

// Ready notifies the kernel. It is safe to call from any goroutine and returns false
// when the kernel has already stopped.
func (src *Source) Ready(value any, err error) bool {
	select {
	case <-src.sim.stopped:
		return false
	default:
	}
	select {
	case src.sim.ready <- readiness{src: src, value: value, err: err}:
		return true
	case <-src.sim.stopped:
		return false
	}
}

func (s *Simulator) deliver(r readiness) {
	if _, ok := s.sources[r.src]; !ok {
		logrus.Debugf("[t=%.3f] dropping notification from unregistered source %s", s.Clock, r.src.name)
		return
	}
	r.src.callback(r.value, r.err)
}

// Go runs fn on its own goroutine and returns an event resolved with its result.
// The kernel stays alive until fn returns.
func (s *Simulator) Go(name string, fn func() (any, error)) *Event {
	ev := NewEvent(s)
	var src *Source
	src = s.Register(name, func(value any, err error) {
		s.Unregister(src)
		if err != nil {
			_ = ev.Fail(err)
			return
		}
		_ = ev.Succeed(value)
	})
	go func() {
		v, err := fn()
		src.Ready(v, err)
	}()
	return ev
}
