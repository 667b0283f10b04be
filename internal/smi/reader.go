// Package smi reads per-device GPU telemetry from an external query utility
// that reports one CSV line per device, device index first.
package smi

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"codeberg.org/mutker/nvoltctl/internal/errors"
	"codeberg.org/mutker/nvoltctl/internal/logger"
	"github.com/commander-cli/cmd"
)

type Reader struct {
	cfg     Config
	log     logger.Logger
	mu      sync.RWMutex
	history map[int]map[Field][]float64
	// stale is set while the last one-shot query failed; closed is set for
	// good once a streaming process exits. Either makes readings absent.
	stale  bool
	closed bool
}

func NewReader(cfg Config, log logger.Logger) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Reader{
		cfg:     cfg,
		log:     log,
		history: make(map[int]map[Field][]float64),
	}, nil
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Path == "" {
		return errFactory.WithData(ErrInvalidConfig, "query utility path is empty")
	}
	if len(c.Fields) == 0 {
		return errFactory.WithData(ErrInvalidConfig, "no telemetry fields configured")
	}
	if c.Window <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "history window must be positive")
	}

	return nil
}

// Poll issues a single query and replaces each device's latest readings.
// A failed query marks all readings absent until the next successful poll.
func (r *Reader) Poll() error {
	errFactory := errors.New()

	c := cmd.NewCommand(r.queryCommand(), cmd.WithTimeout(r.cfg.Timeout))
	if err := c.Execute(); err != nil {
		r.setStale(true)
		return errFactory.Wrap(ErrQueryFailed, err)
	}
	if c.ExitCode() != 0 {
		r.setStale(true)
		return errFactory.WithData(ErrQueryFailed, strings.TrimSpace(c.Stderr()))
	}

	r.ingest(c.Stdout())
	r.setStale(false)

	return nil
}

// Latest returns the most recent reading for a device, or absent when the
// device was never reported or the telemetry source is unavailable.
func (r *Reader) Latest(device int, field Field) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || r.stale {
		return 0, false
	}

	samples := r.history[device][field]
	if len(samples) == 0 {
		return 0, false
	}

	return samples[len(samples)-1], true
}

// Temperature is shorthand for the latest temperature reading.
func (r *Reader) Temperature(device int) (float64, bool) {
	return r.Latest(device, FieldTemperature)
}

// Average returns the mean of up to window most recent samples.
func (r *Reader) Average(device int, field Field, window int) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || r.stale || window <= 0 {
		return 0, false
	}

	samples := r.history[device][field]
	if len(samples) == 0 {
		return 0, false
	}

	if len(samples) > window {
		samples = samples[len(samples)-window:]
	}

	sum := 0.0
	for _, s := range samples {
		sum += s
	}

	return sum / float64(len(samples)), true
}

// Snapshot returns the latest reading per device for one field.
func (r *Reader) Snapshot(field Field) map[int]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]float64, len(r.history))
	if r.closed || r.stale {
		return out
	}

	for device, fields := range r.history {
		if samples := fields[field]; len(samples) > 0 {
			out[device] = samples[len(samples)-1]
		}
	}

	return out
}

// Devices lists every device index seen so far, in ascending order.
func (r *Reader) Devices() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]int, 0, len(r.history))
	for device := range r.history {
		devices = append(devices, device)
	}
	sort.Ints(devices)

	return devices
}

func (r *Reader) queryCommand() string {
	return r.cfg.Path + " " + strings.Join(r.queryArgs(), " ")
}

func (r *Reader) queryArgs() []string {
	columns := make([]string, 0, len(r.cfg.Fields)+1)
	columns = append(columns, "index")
	for _, f := range r.cfg.Fields {
		columns = append(columns, string(f))
	}

	return []string{
		"--query-gpu=" + strings.Join(columns, ","),
		"--format=csv,noheader,nounits",
	}
}

func (r *Reader) ingest(output string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.ingestLine(line)
	}
}

func (r *Reader) ingestLine(line string) {
	device, values, err := parseLine(line, len(r.cfg.Fields))
	if err != nil {
		// Malformed lines are dropped, not fatal.
		r.log.Warn().Err(err).Str("line", line).Msg("Discarding malformed telemetry line")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fields := r.history[device]
	if fields == nil {
		fields = make(map[Field][]float64, len(r.cfg.Fields))
		r.history[device] = fields
	}

	for i, field := range r.cfg.Fields {
		samples := append(fields[field], values[i])
		if len(samples) > r.cfg.Window {
			samples = samples[1:]
		}
		fields[field] = samples
	}
}

// parseLine parses "index, value[, value...]" with the expected field count.
func parseLine(line string, fieldCount int) (int, []float64, error) {
	errFactory := errors.New()

	parts := strings.Split(line, ",")
	if len(parts) != fieldCount+1 {
		return 0, nil, errFactory.WithData(ErrParseFailed, "field count mismatch")
	}

	device, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, nil, errFactory.Wrap(ErrParseFailed, err)
	}

	values := make([]float64, 0, fieldCount)
	for _, part := range parts[1:] {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, nil, errFactory.Wrap(ErrParseFailed, err)
		}
		values = append(values, value)
	}

	return device, values, nil
}

func (r *Reader) setStale(stale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale = stale
}
