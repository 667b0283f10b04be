package smi

import "codeberg.org/mutker/nvoltctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("smi_invalid_config")

	// Query Errors
	ErrQueryFailed = errors.ErrorCode("smi_query_failed")
	ErrParseFailed = errors.ErrorCode("smi_parse_failed")

	// Streaming Errors
	ErrStreamFailed = errors.ErrorCode("smi_stream_failed")
)
