package inspector

import (
	"testing"

	"codeberg.org/mutker/nvoltctl/internal/errors"
	"codeberg.org/mutker/nvoltctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	assert.Equal(t, "-lockVoltagePoint:0,843750", LockVoltagePoint(0, 843750).String())
	assert.Equal(t, "-setBaseClockOffset:1,0,100", BaseClockOffset(1, 0, 100).String())
	assert.Equal(t, "-setMemoryClockOffset:2,0,400", MemoryClockOffset(2, 0, 400).String())
}

func TestCommandLine(t *testing.T) {
	logger.Init(false, false, true)

	e, err := NewEmitter(DefaultConfig(), logger.Default())
	require.NoError(t, err)

	line := e.commandLine([]Command{
		LockVoltagePoint(0, 843750),
		LockVoltagePoint(1, 850000),
	})
	assert.Equal(t, "nvidiaInspector -lockVoltagePoint:0,843750 -lockVoltagePoint:1,850000", line)
}

func TestEmptyBatchIsNoOp(t *testing.T) {
	logger.Init(false, false, true)

	cfg := DefaultConfig()
	cfg.Path = "/nonexistent/tool"
	e, err := NewEmitter(cfg, logger.Default())
	require.NoError(t, err)

	// The utility does not exist; Apply must still succeed because an
	// empty batch never invokes it.
	require.NoError(t, e.Apply(nil))
	require.NoError(t, e.Apply([]Command{}))
}

func TestNewEmitterRequiresPath(t *testing.T) {
	logger.Init(false, false, true)

	_, err := NewEmitter(Config{}, logger.Default())
	require.Error(t, err)
}

func TestAsToolFailure(t *testing.T) {
	errFactory := errors.New()
	err := errFactory.WithData(ErrToolFailed, ToolFailure{ExitCode: 2, Stderr: "unknown device"})

	failure, ok := AsToolFailure(err)
	require.True(t, ok)
	assert.Equal(t, 2, failure.ExitCode)
	assert.Equal(t, "unknown device", failure.Stderr)

	_, ok = AsToolFailure(errFactory.New(ErrInvokeFailed))
	assert.False(t, ok)
}
