package control

import "codeberg.org/mutker/nvoltctl/internal/errors"

const (
	// Parameter Errors
	ErrInvalidParams = errors.ErrorCode("control_invalid_params")

	// Safety Errors
	ErrRebootTriggered = errors.ErrorCode("control_reboot_triggered")
)
