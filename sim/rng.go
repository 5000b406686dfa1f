package sim

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// Streams hands out the random streams of one run. The service-time stream is
// seeded with the run seed itself, so a seed always reproduces the same crane and
// lift timings. Each vehicle draws from its own stream keyed by its name, so adding
// or reordering vehicles never shifts another vehicle's draws.
type Streams struct {
	seed int64

	mu       sync.Mutex
	service  *rand.Rand
	vehicles map[string]*rand.Rand
}

// NewStreams creates the streams for a run seeded with seed.
func NewStreams(seed int64) *Streams {
	return &Streams{seed: seed, vehicles: make(map[string]*rand.Rand)}
}

// Seed returns the run seed.
func (s *Streams) Seed() int64 { return s.seed }

// Service returns the stream service times are drawn from.
func (s *Streams) Service() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.service == nil {
		s.service = rand.New(rand.NewSource(s.seed))
	}
	return s.service
}

// Vehicle returns the named vehicle's stream. Repeated calls return the same stream.
func (s *Streams) Vehicle(name string) *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.vehicles[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(s.seed ^ nameHash("vehicle/"+name)))
	s.vehicles[name] = r
	return r
}

func nameHash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
