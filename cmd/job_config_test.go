package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyterm/easyterm/sim/terminal"
	"github.com/easyterm/easyterm/sim/traffic"
)

func TestParseFlow(t *testing.T) {
	tests := []struct {
		in      string
		want    terminal.Flow
		wantErr bool
	}{
		{in: "INPORT", want: terminal.Inport},
		{in: "outport", want: terminal.Outport},
		{in: " ShipCycle ", want: terminal.ShipCycle},
		{in: "4", want: terminal.YardCycle},
		{in: "1", want: terminal.Outport},
		{in: "5", wantErr: true},
		{in: "TRANSSHIP", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseFlow(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseFlow(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFlow(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFlow(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadJobFile_ExampleJob_AppliesToTerminal(t *testing.T) {
	// GIVEN the example job shipped at the repository root
	jf, err := loadJobFile("../job.yaml")
	require.NoError(t, err)

	// WHEN it is resolved and applied to a terminal
	job, err := jf.Job()
	require.NoError(t, err)
	term, err := terminal.New(terminal.Config{Dispatcher: traffic.NewClient("127.0.0.1:1")})
	require.NoError(t, err)
	require.NoError(t, term.Apply(job))

	// THEN every facility and task is registered
	assert.Len(t, job.QC, 2)
	assert.Len(t, job.ARMG, 2)
	assert.Equal(t, []string{"agv_1", "agv_2"}, term.AGVNames())
	require.Len(t, job.Tasks, 4)
	assert.Equal(t, terminal.ShipCycle, job.Tasks[2].Container.Flow)
	assert.Equal(t, 30, job.Tasks[2].Container.CycleBay)
	assert.Len(t, term.TaskManager().Tasks(), 4)
}

func TestParseJobFile_UnknownField_Rejected(t *testing.T) {
	_, err := parseJobFile([]byte("qc:\n  - {id: 1, position: 20, lane: [1]}\n"))
	assert.Error(t, err)
}

func TestJobFile_BadFlag_ReportsTask(t *testing.T) {
	jf, err := parseJobFile([]byte("tasks:\n  - {id: 7, flag: RAIL}\n"))
	require.NoError(t, err)

	_, err = jf.Job()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task 7")
}
