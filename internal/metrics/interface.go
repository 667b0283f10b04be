package metrics

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for metrics data storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one device's control state after a tick.
type Snapshot struct {
	Timestamp   time.Time
	Device      int
	Temperature float64
	Setpoint    float64 // continuous controller state, µV
	Voltage     int     // quantized setpoint, µV
	Emitted     bool    // whether this tick pushed a new value
}
