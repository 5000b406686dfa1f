package sim

import "fmt"

// Resource is a counting resource with a FIFO queue of pending requests.
type Resource struct {
	sim      *Simulator
	name     string
	capacity int
	users    map[*Event]struct{}
	queue    []*Event
}

// NewResource creates a resource with capacity concurrent users.
func NewResource(s *Simulator, name string, capacity int) (*Resource, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("resource %s: %w (got %d)", name, ErrInvalidCapacity, capacity)
	}
	return &Resource{sim: s, name: name, capacity: capacity, users: make(map[*Event]struct{})}, nil
}

// Count returns the number of current users.
func (r *Resource) Count() int { return len(r.users) }

// Queued returns the number of pending requests.
func (r *Resource) Queued() int { return len(r.queue) }

// Request returns an event that succeeds once a slot has been granted. The returned
// event is the token to pass to Release.
func (r *Resource) Request() *Event {
	req := NewEvent(r.sim)
	r.queue = append(r.queue, req)
	r.grant()
	return req
}

// Release frees the slot held by req, or withdraws req if it is still queued.
func (r *Resource) Release(req *Event) {
	if _, ok := r.users[req]; ok {
		delete(r.users, req)
	} else {
		for i, q := range r.queue {
			if q == req {
				r.queue = append(r.queue[:i], r.queue[i+1:]...)
				break
			}
		}
	}
	r.grant()
}

func (r *Resource) grant() {
	for len(r.queue) > 0 && len(r.users) < r.capacity {
		req := r.queue[0]
		r.queue = r.queue[1:]
		r.users[req] = struct{}{}
		_ = req.Succeed(nil)
	}
}
