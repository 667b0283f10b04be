package params_test

import (
	"testing"

	"codeberg.org/mutker/nvoltctl/internal/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePerDeviceValue(t *testing.T) {
	values := []int{700000, 712500, 725000}

	for i, want := range values {
		got, err := params.Resolve(values, i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	// A single entry acts as the default for all unlisted devices.
	got, err := params.Resolve([]int{700000}, 2)
	require.NoError(t, err)
	assert.Equal(t, 700000, got)
}

func TestResolveNegativeIndexFallsBack(t *testing.T) {
	got, err := params.Resolve([]int{60, 65}, -1)
	require.NoError(t, err)
	assert.Equal(t, 60, got)
}

func TestResolveZeroIsAConfiguredValue(t *testing.T) {
	// An explicit zero must not be replaced by the default.
	got, err := params.Resolve([]int{100, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestResolveEmptyValues(t *testing.T) {
	_, err := params.Resolve([]int{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(params.ErrEmptyValues))
}
