package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/easyterm/easyterm/sim/terminal"
)

// CraneEntry is a qc or armg entry of a job file.
type CraneEntry struct {
	ID       int   `yaml:"id"`
	Position int   `yaml:"position"`
	Lanes    []int `yaml:"lanes"`
}

// VehicleEntry is an agv entry of a job file.
type VehicleEntry struct {
	ID       int `yaml:"id"`
	Position int `yaml:"position"`
}

// ContainerEntry is the container a task moves.
type ContainerEntry struct {
	ID        string `yaml:"id"`
	Bay       int    `yaml:"bay"`
	CycleBay  int    `yaml:"cycle_bay"`
	Yard      int    `yaml:"yard"`
	CycleYard int    `yaml:"cycle_yard"`
}

// TaskEntry is a task of a job file. Flag is a flow name (INPORT) or its number (2).
type TaskEntry struct {
	ID          int            `yaml:"id"`
	Priority    int            `yaml:"priority"`
	Flag        string         `yaml:"flag"`
	Container   ContainerEntry `yaml:"container"`
	Start       int            `yaml:"start"`
	End         int            `yaml:"end"`
	Transporter int            `yaml:"transporter"`
}

// JobFile is the job descriptor read by the run command.
type JobFile struct {
	QC    []CraneEntry   `yaml:"qc"`
	ARMG  []CraneEntry   `yaml:"armg"`
	AGV   []VehicleEntry `yaml:"agv"`
	Tasks []TaskEntry    `yaml:"tasks"`
}

// loadJobFile reads and strictly decodes a job descriptor.
func loadJobFile(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file %s: %w", path, err)
	}
	return parseJobFile(data)
}

func parseJobFile(data []byte) (*JobFile, error) {
	var jf JobFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&jf); err != nil {
		return nil, fmt.Errorf("parse job YAML: %w", err)
	}
	return &jf, nil
}

// parseFlow accepts a flow name, case-insensitive, or its numeric flag.
func parseFlow(s string) (terminal.Flow, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		f := terminal.Flow(n)
		if _, _, err := f.Endpoints(); err != nil {
			return 0, fmt.Errorf("unknown flag %q", s)
		}
		return f, nil
	}
	for _, f := range []terminal.Flow{terminal.Outport, terminal.Inport, terminal.ShipCycle, terminal.YardCycle} {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", s)
}

// Job resolves the file into a terminal job.
func (jf *JobFile) Job() (terminal.Job, error) {
	var job terminal.Job
	for _, c := range jf.QC {
		job.QC = append(job.QC, terminal.CraneSpec{ID: c.ID, Position: c.Position, Lanes: c.Lanes})
	}
	for _, c := range jf.ARMG {
		job.ARMG = append(job.ARMG, terminal.CraneSpec{ID: c.ID, Position: c.Position, Lanes: c.Lanes})
	}
	for _, v := range jf.AGV {
		job.AGV = append(job.AGV, terminal.VehicleSpec{ID: v.ID, Position: v.Position})
	}
	for _, t := range jf.Tasks {
		flow, err := parseFlow(t.Flag)
		if err != nil {
			return terminal.Job{}, fmt.Errorf("task %d: %w", t.ID, err)
		}
		job.Tasks = append(job.Tasks, terminal.TaskSpec{
			RawID:    t.ID,
			Priority: t.Priority,
			Container: terminal.Container{
				ID:        t.Container.ID,
				Flow:      flow,
				Bay:       t.Container.Bay,
				CycleBay:  t.Container.CycleBay,
				Yard:      t.Container.Yard,
				CycleYard: t.Container.CycleYard,
			},
			Start:       t.Start,
			End:         t.End,
			Transporter: t.Transporter,
		})
	}
	return job, nil
}
