package traffic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const inboxSize = 64

// errDisconnected is returned by Await once the vehicle's channel has closed.
var errDisconnected = errors.New("vehicle disconnected")

// Vehicle is the dispatcher side of a logged-in AGV's persistent channel.
type Vehicle struct {
	name  string
	conn  net.Conn
	wmu   sync.Mutex
	inbox chan string
	done  chan struct{}
	once  sync.Once
}

func newVehicle(name string, conn net.Conn) *Vehicle {
	return &Vehicle{
		name:  name,
		conn:  conn,
		inbox: make(chan string, inboxSize),
		done:  make(chan struct{}),
	}
}

// Name returns the login name.
func (v *Vehicle) Name() string { return v.name }

// Push writes a directive to the vehicle.
func (v *Vehicle) Push(d Directive) error {
	line, err := encodeLine(d)
	if err != nil {
		return fmt.Errorf("encode directive for %s: %w", v.name, err)
	}
	v.wmu.Lock()
	defer v.wmu.Unlock()
	if _, err := v.conn.Write(line); err != nil {
		return fmt.Errorf("push directive to %s: %w", v.name, err)
	}
	return nil
}

// Await returns the next message the vehicle sent.
func (v *Vehicle) Await(ctx context.Context) (string, error) {
	select {
	case msg := <-v.inbox:
		return msg, nil
	case <-v.done:
		select {
		case msg := <-v.inbox:
			return msg, nil
		default:
		}
		return "", fmt.Errorf("%s: %w", v.name, errDisconnected)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// deliver queues a line read from the vehicle's connection.
func (v *Vehicle) deliver(ctx context.Context, msg string) bool {
	select {
	case v.inbox <- strings.TrimSpace(msg):
		return true
	case <-ctx.Done():
		return false
	}
}

func (v *Vehicle) close() {
	v.once.Do(func() { close(v.done) })
}

// vehicleTable tracks logged-in vehicles by name. A new login under an existing
// name replaces the old channel.
type vehicleTable struct {
	mu      sync.Mutex
	byName  map[string]*Vehicle
	changed chan struct{}
}

func newVehicleTable() *vehicleTable {
	return &vehicleTable{byName: make(map[string]*Vehicle), changed: make(chan struct{})}
}

func (t *vehicleTable) add(v *Vehicle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byName[v.name]; ok && old != v {
		logrus.Warnf("traffic: %s logged in again, replacing previous channel", v.name)
		old.close()
	}
	t.byName[v.name] = v
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *vehicleTable) remove(v *Vehicle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.byName[v.name]; ok && cur == v {
		delete(t.byName, v.name)
	}
}

// lookup returns the named vehicle, waiting up to timeout for it to log in.
func (t *vehicleTable) lookup(ctx context.Context, name string, timeout time.Duration) (*Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		t.mu.Lock()
		v, ok := t.byName[name]
		changed := t.changed
		t.mu.Unlock()
		if ok {
			return v, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", name, ErrUnknownVehicle)
		}
	}
}

func (t *vehicleTable) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byName))
	for name := range t.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *vehicleTable) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range t.byName {
		v.close()
	}
}
