// Package inspector drives the external GPU configuration utility. The
// utility has no readback; every batch is a fire-and-forget synchronous
// invocation with flag-style arguments of the shape
// -<command>:<device>,<value> or -<command>:<device>,<pstate>,<value>.
package inspector

import (
	"fmt"
	"strings"
	"sync"

	"codeberg.org/mutker/nvoltctl/internal/errors"
	"codeberg.org/mutker/nvoltctl/internal/logger"
	"github.com/commander-cli/cmd"
)

// Command is a single device-scoped parameter assignment.
type Command struct {
	Name      string
	Device    int
	PState    int
	Value     int
	hasPState bool
}

// LockVoltagePoint pins a device's voltage point, in microvolts.
func LockVoltagePoint(device, microvolts int) Command {
	return Command{Name: "lockVoltagePoint", Device: device, Value: microvolts}
}

// BaseClockOffset sets a device's base clock offset for a performance state.
func BaseClockOffset(device, pstate, offset int) Command {
	return Command{Name: "setBaseClockOffset", Device: device, PState: pstate, Value: offset, hasPState: true}
}

// MemoryClockOffset sets a device's memory clock offset for a performance state.
func MemoryClockOffset(device, pstate, offset int) Command {
	return Command{Name: "setMemoryClockOffset", Device: device, PState: pstate, Value: offset, hasPState: true}
}

func (c Command) String() string {
	if c.hasPState {
		return fmt.Sprintf("-%s:%d,%d,%d", c.Name, c.Device, c.PState, c.Value)
	}

	return fmt.Sprintf("-%s:%d,%d", c.Name, c.Device, c.Value)
}

// Emitter serializes all configuration-utility invocations behind one lock:
// the repeating control tick and the one-shot clock-offset timer may both
// emit, and the underlying tool is not concurrency-safe.
type Emitter struct {
	cfg Config
	log logger.Logger
	mu  sync.Mutex
}

func NewEmitter(cfg Config, log logger.Logger) (*Emitter, error) {
	errFactory := errors.New()
	if cfg.Path == "" {
		return nil, errFactory.WithData(ErrInvalidConfig, "configuration utility path is empty")
	}

	return &Emitter{cfg: cfg, log: log}, nil
}

// Apply performs one synchronous invocation with all commands as arguments.
// An empty batch performs no invocation and logs nothing.
func (e *Emitter) Apply(commands []Command) error {
	if len(commands) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	errFactory := errors.New()
	line := e.commandLine(commands)
	e.log.Info().Str("command", line).Msg("Applying GPU configuration")

	c := cmd.NewCommand(line, cmd.WithTimeout(e.cfg.Timeout))
	if err := c.Execute(); err != nil {
		return errFactory.Wrap(ErrInvokeFailed, err)
	}

	if c.ExitCode() != 0 {
		return errFactory.WithData(ErrToolFailed, ToolFailure{
			ExitCode: c.ExitCode(),
			Stderr:   strings.TrimSpace(c.Stderr()),
		})
	}

	return nil
}

func (e *Emitter) commandLine(commands []Command) string {
	args := make([]string, 0, len(commands)+1)
	args = append(args, e.cfg.Path)
	for _, command := range commands {
		args = append(args, command.String())
	}

	return strings.Join(args, " ")
}
