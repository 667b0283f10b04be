// Package params resolves per-device tunables.
//
// Every tunable is configured as an ordered array indexed by a device's
// logical position in the managed-device list. A device without an entry of
// its own falls back to the first element, which acts as the shared default
// for all unlisted devices.
package params

import "codeberg.org/mutker/nvoltctl/internal/errors"

const ErrEmptyValues = errors.ErrorCode("params_empty_values")

// Resolve returns values[i] when present, values[0] otherwise. Only an
// out-of-range index triggers the fallback: a configured zero is a real
// value, not an unset marker.
func Resolve[T any](values []T, i int) (T, error) {
	if len(values) == 0 {
		var zero T
		errFactory := errors.New()

		return zero, errFactory.New(ErrEmptyValues)
	}

	if i >= 0 && i < len(values) {
		return values[i], nil
	}

	return values[0], nil
}
