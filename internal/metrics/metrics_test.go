package metrics_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/nvoltctl/internal/logger"
	"codeberg.org/mutker/nvoltctl/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCollectorIsNoop(t *testing.T) {
	logger.Init(false, false, true)

	collector, err := metrics.NewService(metrics.Config{Enabled: false})
	require.NoError(t, err)

	snapshot := &metrics.Snapshot{Timestamp: time.Now(), Device: 0}
	require.NoError(t, collector.Record(context.Background(), snapshot))
	require.NoError(t, collector.Close())
}

func TestRecordAndReadBack(t *testing.T) {
	logger.Init(false, false, true)

	dbPath := filepath.Join(t.TempDir(), "metrics.db")
	collector, err := metrics.NewService(metrics.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)

	snapshot := &metrics.Snapshot{
		Timestamp:   time.Unix(1700000000, 0),
		Device:      1,
		Temperature: 71,
		Setpoint:    843750.5,
		Voltage:     843750,
		Emitted:     true,
	}
	require.NoError(t, collector.Record(context.Background(), snapshot))
	require.NoError(t, collector.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var (
		device, voltage, emitted int
		temperature, setpoint    float64
	)
	row := db.QueryRow("SELECT device, temperature, setpoint, voltage, emitted FROM control_trace WHERE timestamp = ?", 1700000000)
	require.NoError(t, row.Scan(&device, &temperature, &setpoint, &voltage, &emitted))

	assert.Equal(t, 1, device)
	assert.InDelta(t, 71, temperature, 0.001)
	assert.InDelta(t, 843750.5, setpoint, 0.001)
	assert.Equal(t, 843750, voltage)
	assert.Equal(t, 1, emitted)
}

func TestRecordCancelledContext(t *testing.T) {
	logger.Init(false, false, true)

	dbPath := filepath.Join(t.TempDir(), "metrics.db")
	collector, err := metrics.NewService(metrics.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)
	defer collector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = collector.Record(ctx, &metrics.Snapshot{Timestamp: time.Now()})
	require.Error(t, err)
}
