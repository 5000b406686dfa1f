package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyterm/easyterm/sim/terminal"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsConfig_ShippedFile_MatchesBuiltin(t *testing.T) {
	// GIVEN the defaults.yaml shipped at the repository root
	cfg, err := loadDefaultsConfig("../defaults.yaml")
	require.NoError(t, err)

	// THEN it carries the reference service times and dispatcher timeouts
	assert.Equal(t, terminal.DefaultServiceDistributions(), cfg.Service)
	assert.Equal(t, 60*time.Second, cfg.Dispatcher.GateTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Dispatcher.HeartbeatInterval)
	assert.Equal(t, int64(42), cfg.Run.Seed)
	assert.True(t, cfg.Run.Strict)
}

func TestLoadDefaultsConfig_MissingFile_UsesBuiltin(t *testing.T) {
	cfg, err := loadDefaultsConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, builtinDefaults(), cfg)
}

func TestLoadDefaultsConfig_UnknownField_Rejected(t *testing.T) {
	// GIVEN a file with a misspelled section
	path := writeTemp(t, "defaults.yaml", "dispatchr:\n  addr: 127.0.0.1:9000\n")

	// WHEN it is loaded
	_, err := loadDefaultsConfig(path)

	// THEN strict decoding rejects it
	assert.Error(t, err)
}

func TestLoadDefaultsConfig_PartialFile_KeepsOtherSections(t *testing.T) {
	// GIVEN a file that only sets the run section
	path := writeTemp(t, "defaults.yaml", "run:\n  factor: 0.5\n  strict: false\n")

	cfg, err := loadDefaultsConfig(path)
	require.NoError(t, err)

	// THEN the run section is taken from the file and the rest stays built in
	assert.Equal(t, 0.5, cfg.Run.Factor)
	assert.False(t, cfg.Run.Strict)
	assert.Equal(t, builtinDefaults().Dispatcher, cfg.Dispatcher)
	assert.Equal(t, terminal.DefaultServiceDistributions(), cfg.Service)
}

func TestTrafficConfig_AddrOverride(t *testing.T) {
	cfg := builtinDefaults()

	tests := []struct {
		name     string
		override string
		want     string
	}{
		{name: "file address", override: "", want: cfg.Dispatcher.Addr},
		{name: "flag address", override: "127.0.0.1:9100", want: "127.0.0.1:9100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.trafficConfig(tt.override)
			if got.Addr != tt.want {
				t.Errorf("Addr: got %q, want %q", got.Addr, tt.want)
			}
			if got.ConfirmTimeout != cfg.Dispatcher.ConfirmTimeout {
				t.Errorf("ConfirmTimeout: got %v, want %v", got.ConfirmTimeout, cfg.Dispatcher.ConfirmTimeout)
			}
		})
	}
}
