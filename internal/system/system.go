// Package system wraps the few OS-level actions the controller takes.
package system

import (
	"time"

	"codeberg.org/mutker/nvoltctl/internal/errors"
	"codeberg.org/mutker/nvoltctl/internal/logger"
	"github.com/commander-cli/cmd"
)

const ErrRebootFailed = errors.ErrorCode("system_reboot_failed")

// Process exit codes. ExitNoDevices distinguishes "no GPUs discovered at
// startup" from ordinary failures.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitNoDevices = 2
)

const (
	rebootCommand = "systemctl reboot"
	rebootTimeout = 30 * time.Second
)

// Rebooter triggers an immediate system restart.
type Rebooter struct {
	log logger.Logger
}

func NewRebooter(log logger.Logger) *Rebooter {
	return &Rebooter{log: log}
}

// Reboot requests an unconditional restart, with no confirmation and no
// graceful shutdown sequencing of the controller itself.
func (r *Rebooter) Reboot() error {
	errFactory := errors.New()

	r.log.Warn().Str("command", rebootCommand).Msg("Triggering system reboot")

	c := cmd.NewCommand(rebootCommand, cmd.WithTimeout(rebootTimeout))
	if err := c.Execute(); err != nil {
		return errFactory.Wrap(ErrRebootFailed, err)
	}
	if c.ExitCode() != 0 {
		return errFactory.WithData(ErrRebootFailed, c.Stderr())
	}

	return nil
}
