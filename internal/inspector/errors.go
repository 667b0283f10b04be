package inspector

import "codeberg.org/mutker/nvoltctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("inspector_invalid_config")

	// Invocation Errors
	ErrInvokeFailed = errors.ErrorCode("inspector_invoke_failed")
	ErrToolFailed   = errors.ErrorCode("inspector_tool_failed")
)

// ToolFailure carries the exit status of a rejected configuration command.
// The caller decides whether a failed write is fatal or merely logged.
type ToolFailure struct {
	ExitCode int
	Stderr   string
}

// AsToolFailure extracts a ToolFailure from an error chain.
func AsToolFailure(err error) (ToolFailure, bool) {
	var appErr errors.Error
	if !errors.As(err, &appErr) {
		return ToolFailure{}, false
	}

	failure, ok := appErr.GetData().(ToolFailure)

	return failure, ok
}
