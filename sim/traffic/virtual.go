package traffic

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
)

// VirtualAGV is a headless vehicle: it logs in, drives each pushed path for
// len(path)/speed wall-clock seconds and confirms the last cell.
type VirtualAGV struct {
	client *Client
	name   string
	jitter float64
	rng    *rand.Rand

	mu       sync.Mutex
	position grid.Cell
	legs     int
}

// NewVirtualAGV creates a vehicle that logs in as name. jitter stretches each travel
// time by a uniform factor in [0, jitter); rng may be nil when jitter is zero.
func NewVirtualAGV(client *Client, name string, jitter float64, rng *rand.Rand) *VirtualAGV {
	return &VirtualAGV{client: client, name: name, jitter: jitter, rng: rng}
}

// Name returns the login name.
func (a *VirtualAGV) Name() string { return a.name }

// Position returns the last confirmed cell.
func (a *VirtualAGV) Position() grid.Cell {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Legs returns the number of directives completed.
func (a *VirtualAGV) Legs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.legs
}

// Run serves directives until ctx ends or the dispatcher closes the channel.
func (a *VirtualAGV) Run(ctx context.Context) error {
	vc, err := a.client.Login(ctx, a.name)
	if err != nil {
		return err
	}
	defer func() { _ = vc.Close() }()

	for {
		d, err := vc.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		logrus.Debugf("virtual %s: driving %v at speed %d", a.name, d.Path, d.Speed)

		timer := time.NewTimer(a.travelTime(d))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}

		dest := d.Destination()
		a.mu.Lock()
		a.position = dest
		a.legs++
		a.mu.Unlock()
		if err := vc.Confirm(dest); err != nil {
			return err
		}
	}
}

func (a *VirtualAGV) travelTime(d Directive) time.Duration {
	if d.Speed <= 0 || len(d.Path) == 0 {
		return 0
	}
	secs := float64(len(d.Path)) / float64(d.Speed)
	if a.jitter > 0 && a.rng != nil {
		secs *= 1 + a.jitter*a.rng.Float64()
	}
	return time.Duration(secs * float64(time.Second))
}

// Fleet runs a set of virtual vehicles side by side.
type Fleet struct {
	agvs []*VirtualAGV
}

// NewFleet creates one virtual vehicle per name. Each vehicle draws its jitter from
// its own stream; streams may be nil when jitter is zero.
func NewFleet(client *Client, names []string, jitter float64, streams *sim.Streams) *Fleet {
	f := &Fleet{}
	for _, name := range names {
		var r *rand.Rand
		if streams != nil {
			r = streams.Vehicle(name)
		}
		f.agvs = append(f.agvs, NewVirtualAGV(client, name, jitter, r))
	}
	return f
}

// Vehicles returns the fleet's vehicles.
func (f *Fleet) Vehicles() []*VirtualAGV { return f.agvs }

// Run serves every vehicle until ctx ends. The first vehicle error cancels the rest.
func (f *Fleet) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, a := range f.agvs {
		a := a
		g.Go(func() error { return a.Run(ctx) })
	}
	return g.Wait()
}
