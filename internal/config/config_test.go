package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/nvoltctl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "nvoltctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
interval = "5s"
clock_offset_delay = "2m"
gain = 0.2
voltage_step = 12500
devices = [0, 2]
min_voltage = [700000]
max_voltage = [925000, 912500]
start_voltage = [850000]
target_temperature = [60, 65]
max_temperature = [90]
base_clock_offset = [100]
memory_clock_offset = [400, 0]
query_path = "/usr/bin/nvidia-smi"
inspector_path = "/opt/inspector/nvidiaInspector"
fail_fast = false
metrics = true
metrics_db = "/tmp/nvoltctl-metrics.db"
`)
	t.Setenv("NVOLTCTL_CONFIG", path)

	cfg, err := config.LoadWithArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.ClockOffsetDelay)
	assert.InDelta(t, 0.2, cfg.Gain, 0.0001)
	assert.Equal(t, 12500, cfg.VoltageStep)
	assert.Equal(t, []int{0, 2}, cfg.Devices)
	assert.Equal(t, []int{925000, 912500}, cfg.MaxVoltage)
	assert.Equal(t, []int{60, 65}, cfg.TargetTemperature)
	assert.Equal(t, []int{400, 0}, cfg.MemoryClockOffset)
	assert.Equal(t, "/usr/bin/nvidia-smi", cfg.QueryPath)
	assert.Equal(t, "/opt/inspector/nvidiaInspector", cfg.InspectorPath)
	assert.False(t, cfg.FailFast)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, "/tmp/nvoltctl-metrics.db", cfg.MetricsDB)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NVOLTCTL_CONFIG", "")

	cfg, err := config.LoadWithArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.Equal(t, config.DefaultClockOffsetDelay, cfg.ClockOffsetDelay)
	assert.InDelta(t, config.DefaultGain, cfg.Gain, 0.0001)
	assert.Equal(t, config.DefaultVoltageStep, cfg.VoltageStep)
	assert.Empty(t, cfg.Devices)
	assert.Equal(t, []int{700000}, cfg.MinVoltage)
	assert.Equal(t, []int{925000}, cfg.MaxVoltage)
	assert.Equal(t, []int{850000}, cfg.StartVoltage)
	assert.Equal(t, []int{60}, cfg.TargetTemperature)
	assert.Equal(t, []int{90}, cfg.MaxTemperature)
	assert.Equal(t, "nvidia-smi", cfg.QueryPath)
	assert.Equal(t, "nvidiaInspector", cfg.InspectorPath)
	assert.True(t, cfg.FailFast)
	assert.False(t, cfg.Monitor)
	assert.False(t, cfg.Metrics)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
interval = "5s"
monitor = false
`)
	t.Setenv("NVOLTCTL_CONFIG", path)

	cfg, err := config.LoadWithArgs([]string{"--interval", "250ms", "--monitor", "--debug"})
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.True(t, cfg.Monitor)
	assert.True(t, cfg.Debug)
}

func TestLoadInvalidFormat(t *testing.T) {
	path := writeConfig(t, "This is not a valid TOML file")
	t.Setenv("NVOLTCTL_CONFIG", path)

	_, err := config.LoadWithArgs(nil)
	require.Error(t, err)
}

func TestValidateStartOutOfBounds(t *testing.T) {
	path := writeConfig(t, `
min_voltage = [700000]
max_voltage = [925000]
start_voltage = [950000]
`)
	t.Setenv("NVOLTCTL_CONFIG", path)

	_, err := config.LoadWithArgs(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_voltage")
}

func TestValidatePerPositionBounds(t *testing.T) {
	// Position 1 resolves min from its own entry but start from the
	// default, which violates the invariant there.
	path := writeConfig(t, `
min_voltage = [700000, 875000]
max_voltage = [925000]
start_voltage = [850000]
`)
	t.Setenv("NVOLTCTL_CONFIG", path)

	_, err := config.LoadWithArgs(nil)
	require.Error(t, err)
}

func TestValidateInvalidInterval(t *testing.T) {
	path := writeConfig(t, `interval = "0s"`)
	t.Setenv("NVOLTCTL_CONFIG", path)

	_, err := config.LoadWithArgs(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval")
}

func TestValidateEmptyArray(t *testing.T) {
	path := writeConfig(t, `max_temperature = []`)
	t.Setenv("NVOLTCTL_CONFIG", path)

	_, err := config.LoadWithArgs(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_temperature")
}
