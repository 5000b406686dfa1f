package traffic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyterm/easyterm/sim"
	"github.com/easyterm/easyterm/sim/grid"
)

func TestVirtualAGV_TravelTime_ScalesWithPathLength(t *testing.T) {
	a := NewVirtualAGV(nil, "agv_1", 0, nil)

	assert.Equal(t, 500*time.Millisecond, a.travelTime(Directive{Path: []int{1, 2, 3, 4, 5}, Speed: 10}))
	assert.Equal(t, time.Duration(0), a.travelTime(Directive{Path: []int{1, 2}, Speed: 0}))
	assert.Equal(t, time.Duration(0), a.travelTime(Directive{Speed: 10}))
}

func TestVirtualAGV_Jitter_NeverShortensTravel(t *testing.T) {
	streams := sim.NewStreams(42)
	a := NewVirtualAGV(nil, "agv_1", 0.5, streams.Vehicle("agv_1"))
	d := Directive{Path: []int{1, 2, 3, 4, 5}, Speed: 10}

	for i := 0; i < 20; i++ {
		got := a.travelTime(d)
		assert.GreaterOrEqual(t, got, 500*time.Millisecond)
		assert.Less(t, got, 750*time.Millisecond)
	}
}

func TestFleet_Run_ServesEveryVehicleUntilCancelled(t *testing.T) {
	// GIVEN a fleet of two vehicles logged in to a dispatcher
	_, client := startServer(t, testConfig())
	fleet := NewFleet(client, []string{"agv_1", "agv_2"}, 0, sim.NewStreams(1))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fleet.Run(ctx) }()
	require.NoError(t, client.SetCell(context.Background(), 20, 1))
	require.NoError(t, client.SetCell(context.Background(), 60, 1))

	// WHEN each vehicle is sent to its own quay lane
	end1, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Priority: 1, Start: 215, End: 20, Speed: 1000, Flag: FlagToStart})
	require.NoError(t, err)
	end2, err := client.Go(context.Background(), GoRequest{AGV: "agv_2", Priority: 1, Start: 216, End: 60, Speed: 1000, Flag: FlagToStart})
	require.NoError(t, err)

	// THEN both arrive and the fleet stops cleanly on cancel
	assert.Equal(t, grid.Cell(20), end1)
	assert.Equal(t, grid.Cell(60), end2)
	assert.Equal(t, grid.Cell(20), fleet.Vehicles()[0].Position())
	assert.Equal(t, grid.Cell(60), fleet.Vehicles()[1].Position())
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fleet did not stop")
	}
}
