// Package control implements the temperature-to-voltage feedback loop. Each
// managed device carries one continuous setpoint; every tick computes a
// bounded proportional update, and only a change in the quantized setpoint
// is pushed to the configuration utility.
package control

import (
	"fmt"
	"math"
	"sync"

	"codeberg.org/mutker/nvoltctl/internal/errors"
	"codeberg.org/mutker/nvoltctl/internal/inspector"
	"codeberg.org/mutker/nvoltctl/internal/logger"
	"codeberg.org/mutker/nvoltctl/internal/params"
)

type deviceState struct {
	// setpoint keeps the clamped, unquantized value. Quantization happens
	// only when deciding what to emit; rounding the retained state would
	// bias updates at step boundaries.
	setpoint float64
}

type Controller struct {
	params   Params
	source   TemperatureSource
	applier  inspector.Applier
	rebooter Rebooter
	log      logger.Logger

	mu     sync.Mutex
	state  map[int]*deviceState
	halted bool
}

func New(p Params, source TemperatureSource, applier inspector.Applier, rebooter Rebooter, log logger.Logger) (*Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		params:   p,
		source:   source,
		applier:  applier,
		rebooter: rebooter,
		log:      log,
		state:    make(map[int]*deviceState, len(p.Devices)),
	}, nil
}

func (p Params) Validate() error {
	errFactory := errors.New()

	if len(p.Devices) == 0 {
		return errFactory.WithData(ErrInvalidParams, "no managed devices")
	}
	if p.Gain <= 0 {
		return errFactory.WithData(ErrInvalidParams, "gain must be positive")
	}
	if p.VoltageStep <= 0 {
		return errFactory.WithData(ErrInvalidParams, "voltage step must be positive")
	}

	arrays := map[string][]int{
		"min_voltage":        p.MinVoltage,
		"max_voltage":        p.MaxVoltage,
		"start_voltage":      p.StartVoltage,
		"target_temperature": p.TargetTemperature,
		"max_temperature":    p.MaxTemperature,
	}
	for name, values := range arrays {
		if len(values) == 0 {
			return errFactory.WithData(ErrInvalidParams, name+" is empty")
		}
	}

	for i := range p.Devices {
		minV := resolve(p.MinVoltage, i)
		maxV := resolve(p.MaxVoltage, i)
		start := resolve(p.StartVoltage, i)
		if minV > start || start > maxV {
			return errFactory.WithData(ErrInvalidParams,
				fmt.Sprintf("device %d: need min <= start <= max voltage, got %d <= %d <= %d",
					p.Devices[i], minV, start, maxV))
		}
	}

	return nil
}

// Tick runs one control cycle: safety check first, then one proportional
// update per device, then a single batched emission if any quantized
// setpoint changed. Once the safety interlock has fired, every later tick
// returns ErrRebootTriggered without touching the devices.
func (c *Controller) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	errFactory := errors.New()

	if c.halted {
		return errFactory.New(ErrRebootTriggered)
	}

	if c.checkSafety() {
		c.halted = true
		return errFactory.New(ErrRebootTriggered)
	}

	batch := make([]inspector.Command, 0, len(c.params.Devices))
	for i, device := range c.params.Devices {
		if command, changed := c.updateDevice(i, device); changed {
			batch = append(batch, command)
		}
	}

	return c.applier.Apply(batch)
}

// checkSafety reports whether any managed device is at or above its maximum
// temperature, triggering a reboot if so. Devices without a current reading
// are not checked.
func (c *Controller) checkSafety() bool {
	over := false
	for i, device := range c.params.Devices {
		temperature, ok := c.source.Temperature(device)
		if !ok {
			continue
		}

		maxTemperature := resolve(c.params.MaxTemperature, i)
		if temperature >= float64(maxTemperature) {
			c.log.Warn().
				Int("device", device).
				Float64("temperature", temperature).
				Int("max_temperature", maxTemperature).
				Msg("Maximum temperature exceeded")
			over = true
		}
	}

	if over {
		if err := c.rebooter.Reboot(); err != nil {
			c.log.Error().Err(err).Msg("Reboot request failed")
		}
	}

	return over
}

func (c *Controller) updateDevice(i, device int) (inspector.Command, bool) {
	state, ok := c.state[device]
	if !ok {
		// First tick for this device: start from the quantized start
		// voltage and emit it unconditionally.
		setpoint := c.Quantize(float64(resolve(c.params.StartVoltage, i)))
		c.state[device] = &deviceState{setpoint: setpoint}
		c.log.Info().Int("device", device).Int("voltage", int(setpoint)).Msg("Initializing voltage setpoint")

		return inspector.LockVoltagePoint(device, int(setpoint)), true
	}

	temperature, ok := c.source.Temperature(device)
	if !ok {
		c.log.Debug().Int("device", device).Msg("No temperature reading; skipping device")
		return inspector.Command{}, false
	}

	target := resolve(c.params.TargetTemperature, i)
	delta := float64(target) - temperature
	adjustment := math.Round(delta * c.params.Gain * float64(c.params.VoltageStep))

	minVoltage := float64(resolve(c.params.MinVoltage, i))
	maxVoltage := float64(resolve(c.params.MaxVoltage, i))
	candidate := clamp(state.setpoint+adjustment, minVoltage, maxVoltage)

	previous := state.setpoint
	state.setpoint = candidate

	quantized := c.Quantize(candidate)
	if quantized == c.Quantize(previous) {
		return inspector.Command{}, false
	}

	c.log.Debug().
		Int("device", device).
		Float64("temperature", temperature).
		Int("target_temperature", target).
		Float64("setpoint", candidate).
		Int("voltage", int(quantized)).
		Msg("Voltage setpoint changed")

	return inspector.LockVoltagePoint(device, int(quantized)), true
}

// Quantize rounds a voltage to the nearest step multiple, half away from
// zero.
func (c *Controller) Quantize(voltage float64) float64 {
	step := float64(c.params.VoltageStep)

	return step * math.Round(voltage/step)
}

// Status reports the control state of every initialized device, in managed
// order.
func (c *Controller) Status() []DeviceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]DeviceStatus, 0, len(c.state))
	for _, device := range c.params.Devices {
		state, ok := c.state[device]
		if !ok {
			continue
		}
		statuses = append(statuses, DeviceStatus{
			Device:   device,
			Setpoint: state.setpoint,
			Voltage:  int(c.Quantize(state.setpoint)),
		})
	}

	return statuses
}

// resolve is params.Resolve over arrays validated non-empty. The clock
// offset arrays may be empty; they resolve to zero, which means "leave
// unchanged".
func resolve(values []int, i int) int {
	value, _ := params.Resolve(values, i)

	return value
}

func clamp(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
