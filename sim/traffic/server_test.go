package traffic

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyterm/easyterm/sim/grid"
	"github.com/easyterm/easyterm/sim/trace"
)

func testConfig() Config {
	return Config{
		Addr:              "127.0.0.1:0",
		GateTimeout:       2 * time.Second,
		ConfirmTimeout:    2 * time.Second,
		HeartbeatInterval: 20 * time.Millisecond,
	}
}

func startServer(t *testing.T, cfg Config) (*Server, *Client) {
	t.Helper()
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	client := NewClient(srv.Addr())
	client.SetTimeout(time.Second)
	return srv, client
}

// startVehicle runs a virtual AGV until the test ends.
func startVehicle(t *testing.T, client *Client, name string) *VirtualAGV {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	agv := NewVirtualAGV(client, name, 0, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = agv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return agv
}

func TestServer_SetCell_UpdatesGate(t *testing.T) {
	srv, client := startServer(t, testConfig())

	require.NoError(t, client.SetCell(context.Background(), 490, 4))

	v, ok := srv.Dispatcher().Gate().Get(490)
	assert.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestServer_MalformedSetCell_RepliesError(t *testing.T) {
	_, client := startServer(t, testConfig())

	_, err := client.call(context.Background(), "setcell 490")

	assert.ErrorIs(t, err, ErrBadCommand)
}

func TestServer_UnknownVerb_Dropped(t *testing.T) {
	srv, _ := startServer(t, testConfig())
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("teleport agv_1 20\n"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')

	assert.Empty(t, line)
	assert.Error(t, err)
}

func TestServer_SyncAndClock_StreamCurrentTime(t *testing.T) {
	_, client := startServer(t, testConfig())
	require.NoError(t, client.Sync(context.Background(), 3.5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got Heartbeat
	err := client.Watch(ctx, func(hb Heartbeat) {
		got = hb
		cancel()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3.5, got.Now)
}

func TestServer_Go_BufferToQuay_ReturnsDestination(t *testing.T) {
	// GIVEN a logged-in vehicle in the buffer lane and a gate open for priority 1
	srv, client := startServer(t, testConfig())
	agv := startVehicle(t, client, "agv_1")
	require.NoError(t, client.SetCell(context.Background(), 20, 1))

	// WHEN it asks to drive to the quay cell
	end, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Priority: 1, Start: 215, End: 20, Speed: 1000, Flag: FlagToStart})

	// THEN the destination is returned and confirmed by the vehicle
	require.NoError(t, err)
	assert.Equal(t, grid.Cell(20), end)
	assert.Equal(t, grid.Cell(20), agv.Position())
	assert.Empty(t, srv.Dispatcher().Router().Barriers())
}

func TestServer_Go_CrossingBufferLane_BarrierSetThenReleased(t *testing.T) {
	srv, client := startServer(t, testConfig())
	agv := startVehicle(t, client, "agv_1")
	require.NoError(t, client.SetCell(context.Background(), 490, 1))

	end, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Priority: 1, Start: 20, End: 490, Speed: 1000, Flag: FlagToEnd})

	require.NoError(t, err)
	assert.Equal(t, grid.Cell(490), end)
	assert.Equal(t, 2, agv.Legs(), "prefix through the crossing and the remaining suffix")
	assert.Empty(t, srv.Dispatcher().Router().Barriers())
}

func TestServer_Go_GateBlocksUntilSetCellAdmits(t *testing.T) {
	// GIVEN the destination gate currently serving priority 0
	_, client := startServer(t, testConfig())
	startVehicle(t, client, "agv_1")
	require.NoError(t, client.SetCell(context.Background(), 20, 0))

	// WHEN a priority 2 move is requested
	type result struct {
		end grid.Cell
		err error
	}
	done := make(chan result, 1)
	go func() {
		end, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Priority: 2, Start: 215, End: 20, Speed: 1000, Flag: FlagToStart})
		done <- result{end, err}
	}()

	// THEN it does not complete while the gate is below its priority
	select {
	case r := <-done:
		t.Fatalf("go completed before gate admitted it: %+v", r)
	case <-time.After(150 * time.Millisecond):
	}

	// WHEN setcell raises the gate THEN the move completes
	require.NoError(t, client.SetCell(context.Background(), 20, 2))
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, grid.Cell(20), r.end)
	case <-time.After(2 * time.Second):
		t.Fatal("go not released after gate update")
	}
}

func TestServer_Go_GateNeverAdmits_Rejected(t *testing.T) {
	cfg := testConfig()
	cfg.GateTimeout = 50 * time.Millisecond
	_, client := startServer(t, cfg)
	startVehicle(t, client, "agv_1")

	_, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Priority: 1, Start: 215, End: 20, Speed: 1000, Flag: FlagToStart})

	assert.ErrorIs(t, err, ErrRejected)
}

func TestServer_Go_UnknownVehicle_Rejected(t *testing.T) {
	cfg := testConfig()
	cfg.ConfirmTimeout = 50 * time.Millisecond
	_, client := startServer(t, cfg)

	_, err := client.Go(context.Background(), GoRequest{AGV: "ghost", Priority: 1, Start: 215, End: 20, Speed: 10, Flag: FlagToStart})

	assert.ErrorIs(t, err, ErrRejected)
}

func TestServer_Go_WrongConfirmation_RejectedAndBarrierReleased(t *testing.T) {
	// GIVEN a vehicle that confirms the wrong cell
	srv, client := startServer(t, testConfig())
	vc, err := client.Login(context.Background(), "liar")
	require.NoError(t, err)
	defer vc.Close()
	go func() {
		if _, err := vc.Next(context.Background()); err == nil {
			_ = vc.Confirm(1)
		}
	}()

	// WHEN it crosses the buffer lane
	_, err = client.Go(context.Background(), GoRequest{AGV: "liar", Priority: 1, Start: 20, End: 490, Speed: 1000, Flag: FlagToEnd})

	// THEN the move is rejected and the crossing is unblocked
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, srv.Dispatcher().Router().Barriers())
}

func TestServer_Go_ReturnLegs_ParkOnDistinctFreeCells(t *testing.T) {
	// GIVEN two vehicles at yard handoff cells
	srv, client := startServer(t, testConfig())
	startVehicle(t, client, "agv_1")
	startVehicle(t, client, "agv_2")

	// WHEN both return to the buffer lane one after the other
	first, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Start: 490, End: -1, Speed: 1000, Flag: FlagReturn})
	require.NoError(t, err)
	second, err := client.Go(context.Background(), GoRequest{AGV: "agv_2", Start: 495, End: -1, Speed: 1000, Flag: FlagReturn})
	require.NoError(t, err)

	// THEN each parks on its own cell, which stays barred
	assert.Equal(t, grid.Cell(201), first)
	assert.Equal(t, grid.Cell(202), second)
	assert.Equal(t, []grid.Cell{201, 202}, srv.Dispatcher().Router().Barriers())
}

func TestStatusHandler_ReportsDispatcherState(t *testing.T) {
	d, err := NewDispatcher(testConfig())
	require.NoError(t, err)
	d.SetCell(60, 2)
	require.NoError(t, d.Router().SetBarrier(203))
	d.SetNow(7.25)
	h := StatusHandler(d)

	tests := []struct {
		path string
		want string
	}{
		{"/healthz", `{"status":"ok"}`},
		{"/barriers", `[203]`},
		{"/gates", `[{"cell":60,"priority":2}]`},
		{"/vehicles", `[]`},
		{"/clock", `{"now":7.25}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestDispatcher_Trace_RecordsLegsAndGates(t *testing.T) {
	// GIVEN a dispatcher tracing decisions and one logged-in vehicle
	cfg := testConfig()
	cfg.ConfirmTimeout = 200 * time.Millisecond
	cfg.Trace = trace.TraceLevelDecisions
	srv, client := startServer(t, cfg)
	startVehicle(t, client, "agv_1")
	require.NoError(t, client.SetCell(context.Background(), 20, 1))

	// WHEN one leg succeeds and one is asked for an absent vehicle
	_, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Priority: 1, Start: 215, End: 20, Speed: 1000, Flag: FlagToStart})
	require.NoError(t, err)
	_, err = client.Go(context.Background(), GoRequest{AGV: "ghost", Priority: 1, Start: 215, End: 20, Speed: 1000, Flag: FlagToStart})
	require.ErrorIs(t, err, ErrRejected)

	// THEN both legs and the gate update are recorded
	dt := srv.Dispatcher().Trace()
	legs := dt.Legs()
	require.Len(t, legs, 2)
	assert.True(t, legs[0].Accepted)
	assert.Equal(t, 14, legs[0].Cost)
	assert.Equal(t, 14, legs[0].PathLen)
	assert.Equal(t, 0, legs[0].Split)
	assert.False(t, legs[1].Accepted)
	assert.Equal(t, -1, legs[1].Split)
	assert.NotEmpty(t, legs[1].Reason)
	assert.Equal(t, []trace.GateRecord{{Cell: 20, Priority: 1}}, dt.Gates())

	summary := trace.Summarize(dt)
	assert.Equal(t, 1, summary.RejectedCount)
	assert.Equal(t, 2, summary.UniqueVehicles)
}

func TestNewDispatcher_UnknownTraceLevel_Fails(t *testing.T) {
	cfg := testConfig()
	cfg.Trace = "verbose"
	_, err := NewDispatcher(cfg)
	assert.Error(t, err)
}

func TestStatusHandler_Trace_ReportsSummary(t *testing.T) {
	d, err := NewDispatcher(testConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	StatusHandler(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trace", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"TotalLegs":0`)
}

func TestServer_UnterminatedSetCell_AppliedWhileConnectionOpen(t *testing.T) {
	srv, _ := startServer(t, testConfig())
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("setcell 20 3"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, ok := srv.Dispatcher().Gate().Get(20)
		return ok && v == 3
	}, time.Second, 10*time.Millisecond)
}

func TestServer_UnterminatedLoginAndConfirmation_CompleteMove(t *testing.T) {
	// GIVEN a vehicle that writes bare commands and keeps its socket open
	srv, client := startServer(t, testConfig())
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("login agv_9"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(srv.Dispatcher().Vehicles()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"agv_9"}, srv.Dispatcher().Vehicles())

	go func() {
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil || !strings.Contains(line, `"path"`) {
			return
		}
		_, _ = conn.Write([]byte("20"))
	}()
	require.NoError(t, client.SetCell(context.Background(), 20, 1))

	// WHEN it is sent to the quay cell
	end, err := client.Go(context.Background(), GoRequest{AGV: "agv_9", Priority: 1, Start: 215, End: 20, Speed: 1000, Flag: FlagToStart})

	// THEN its bare confirmation completes the move
	require.NoError(t, err)
	assert.Equal(t, grid.Cell(20), end)
}

func TestServer_Go_FromFirstQuayColumn_ReachesYard(t *testing.T) {
	// GIVEN a vehicle loaded under a crane parked at position 1
	srv, client := startServer(t, testConfig())
	agv := startVehicle(t, client, "agv_1")
	require.NoError(t, client.SetCell(context.Background(), 490, 1))

	// WHEN it is sent to the yard
	end, err := client.Go(context.Background(), GoRequest{AGV: "agv_1", Priority: 1, Start: 1, End: 490, Speed: 1000, Flag: FlagToEnd})

	// THEN the leg is planned from the row edge and completes
	require.NoError(t, err)
	assert.Equal(t, grid.Cell(490), end)
	assert.Equal(t, grid.Cell(490), agv.Position())
	assert.Empty(t, srv.Dispatcher().Router().Barriers())
}
