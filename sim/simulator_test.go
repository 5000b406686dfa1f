package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{Factor: 0}
}

func TestSimulator_Run_EmptyQueue_ReturnsInitialTime(t *testing.T) {
	s := NewSimulator(Config{InitialTime: 3})

	now, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 3.0, now)
}

func TestSimulator_SameInstant_UrgentBeforeNormalThenInsertionOrder(t *testing.T) {
	// GIVEN four events at t=1: two Normal, then two Urgent
	s := NewSimulator(fastConfig())
	var order []string
	add := func(name string, prio Priority) {
		e := NewEvent(s)
		e.AddCallback(func(*Event) { order = append(order, name) })
		s.Schedule(e, prio, 1)
	}
	add("n1", Normal)
	add("n2", Normal)
	add("u1", Urgent)
	add("u2", Urgent)

	// WHEN the kernel runs
	now, err := s.Run()

	// THEN urgent events fire first and ties keep insertion order
	require.NoError(t, err)
	assert.Equal(t, 1.0, now)
	assert.Equal(t, []string{"u1", "u2", "n1", "n2"}, order)
}

func TestSimulator_Timeouts_FireInTimeOrder(t *testing.T) {
	s := NewSimulator(fastConfig())
	var fired []float64
	for _, d := range []float64{5, 1, 3} {
		s.Timeout(d, nil).AddCallback(func(*Event) { fired = append(fired, s.Now()) })
	}

	now, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 5.0, now)
	assert.Equal(t, []float64{1, 3, 5}, fired)
}

func TestSimulator_Factor_PacesAgainstWallClock(t *testing.T) {
	// GIVEN a kernel at 10ms per time unit and a timeout of 5 units
	s := NewSimulator(Config{Factor: 0.01, Horizon: 0})
	s.Timeout(5, nil)

	// WHEN it runs
	start := time.Now()
	now, err := s.Run()

	// THEN at least ~50ms of wall time elapsed
	require.NoError(t, err)
	assert.Equal(t, 5.0, now)
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestSimulator_Strict_TooSlow_ReturnsErrTooSlow(t *testing.T) {
	// GIVEN a wall clock that jumps 10s after construction and strict 1s/unit pacing
	base := time.Unix(1000, 0)
	calls := 0
	wall := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(10 * time.Second)
	}
	s := NewSimulator(Config{Factor: 1, Strict: true, WallClock: wall})
	s.Timeout(1, nil)

	// WHEN it runs
	_, err := s.Run()

	// THEN the pacing fault aborts the run
	assert.ErrorIs(t, err, ErrTooSlow)
}

func TestSimulator_NonStrict_Late_CatchesUp(t *testing.T) {
	base := time.Unix(1000, 0)
	calls := 0
	wall := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(10 * time.Second)
	}
	s := NewSimulator(Config{Factor: 1, Strict: false, WallClock: wall})
	s.Timeout(1, nil)

	now, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 1.0, now)
}

func TestSimulator_Horizon_StopsBeforeLaterEvents(t *testing.T) {
	s := NewSimulator(Config{Horizon: 4})
	fired := false
	s.Timeout(2, nil)
	s.Timeout(10, nil).AddCallback(func(*Event) { fired = true })

	now, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 2.0, now)
	assert.False(t, fired)
	assert.Equal(t, 10.0, s.Peek())
}

func TestSimulator_RunTwice_ReturnsError(t *testing.T) {
	s := NewSimulator(fastConfig())
	_, err := s.Run()
	require.NoError(t, err)

	_, err = s.Run()
	assert.Error(t, err)
}

func TestSimulator_Go_ExternalResult_ResumesProcess(t *testing.T) {
	// GIVEN a process waiting on a blocking call run outside the kernel
	s := NewSimulator(fastConfig())
	var got any
	s.Process("caller", func(p *Process) error {
		v, err := p.Wait(s.Go("lookup", func() (any, error) {
			time.Sleep(10 * time.Millisecond)
			return 7, nil
		}))
		got = v
		return err
	})

	// WHEN the kernel runs with an otherwise empty queue
	_, err := s.Run()

	// THEN it stays alive for the source and delivers the value
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Empty(t, s.Failures())
	assert.False(t, s.Busy())
}

func TestSimulator_Go_ExternalError_FailsWaiter(t *testing.T) {
	s := NewSimulator(fastConfig())
	boom := errors.New("boom")
	var got error
	s.Process("caller", func(p *Process) error {
		_, got = p.Wait(s.Go("lookup", func() (any, error) { return nil, boom }))
		return nil
	})

	_, err := s.Run()

	require.NoError(t, err)
	assert.ErrorIs(t, got, boom)
}

func TestSimulator_Source_ReadyAfterUnregister_Dropped(t *testing.T) {
	s := NewSimulator(fastConfig())
	delivered := 0
	src := s.Register("sock", func(any, error) { delivered++ })
	s.Unregister(src)
	s.Unregister(src)

	go src.Ready(1, nil)
	_, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
}

func TestSimulator_RunContext_Cancelled_ReturnsContextError(t *testing.T) {
	// GIVEN a source that never becomes ready
	s := NewSimulator(fastConfig())
	s.Register("silent", func(any, error) {})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// WHEN the run is cancelled
	_, err := s.RunContext(ctx)

	// THEN the context error is returned
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimulator_UnhandledFailedEvent_RecordedAsFailure(t *testing.T) {
	s := NewSimulator(fastConfig())
	e := NewEvent(s)
	require.NoError(t, e.Fail(errors.New("lost")))

	_, err := s.Run()

	require.NoError(t, err)
	require.Len(t, s.Failures(), 1)
	assert.EqualError(t, s.Failures()[0], "lost")
}
