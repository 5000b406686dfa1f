package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/easyterm/easyterm/sim/terminal"
	"github.com/easyterm/easyterm/sim/trace"
	"github.com/easyterm/easyterm/sim/traffic"
)

// DispatcherDefaults is the dispatcher section of defaults.yaml.
type DispatcherDefaults struct {
	Addr              string        `yaml:"addr"`
	GateTimeout       time.Duration `yaml:"gate_timeout"`
	ConfirmTimeout    time.Duration `yaml:"confirm_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	CacheSize         int           `yaml:"cache_size"`
	Trace             string        `yaml:"trace"`
}

// RunDefaults is the run section of defaults.yaml.
type RunDefaults struct {
	Factor float64 `yaml:"factor"`
	Strict bool    `yaml:"strict"`
	Seed   int64   `yaml:"seed"`
	Jitter float64 `yaml:"jitter"`
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version    string                        `yaml:"version"`
	Service    terminal.ServiceDistributions `yaml:"service"`
	Dispatcher DispatcherDefaults            `yaml:"dispatcher"`
	Run        RunDefaults                   `yaml:"run"`
}

// builtinDefaults mirrors the shipped defaults.yaml.
func builtinDefaults() Config {
	d := traffic.DefaultConfig()
	return Config{
		Version: "builtin",
		Service: terminal.DefaultServiceDistributions(),
		Dispatcher: DispatcherDefaults{
			Addr:              d.Addr,
			GateTimeout:       d.GateTimeout,
			ConfirmTimeout:    d.ConfirmTimeout,
			HeartbeatInterval: d.HeartbeatInterval,
			CacheSize:         d.CacheSize,
			Trace:             string(trace.TraceLevelNone),
		},
		Run: RunDefaults{Factor: 1, Strict: true, Seed: 42},
	}
}

// loadDefaultsConfig parses defaults.yaml with strict field checking. Sections the
// file leaves out keep their built-in values. A missing file yields the built-in
// defaults.
func loadDefaultsConfig(path string) (Config, error) {
	cfg := builtinDefaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.Debugf("defaults file %s not found, using built-in defaults", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read defaults file %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse defaults YAML %s: %w", path, err)
	}
	return cfg, nil
}

// trafficConfig converts the dispatcher section. addr overrides the file when set.
func (c Config) trafficConfig(addr string) traffic.Config {
	cfg := traffic.Config{
		Addr:              c.Dispatcher.Addr,
		GateTimeout:       c.Dispatcher.GateTimeout,
		ConfirmTimeout:    c.Dispatcher.ConfirmTimeout,
		HeartbeatInterval: c.Dispatcher.HeartbeatInterval,
		CacheSize:         c.Dispatcher.CacheSize,
		Trace:             trace.TraceLevel(c.Dispatcher.Trace),
	}
	if addr != "" {
		cfg.Addr = addr
	}
	return cfg
}
