package control

// TemperatureSource provides the latest per-device temperature reading.
// A false return means the reading is absent and the device must be
// skipped this tick.
type TemperatureSource interface {
	Temperature(device int) (float64, bool)
}

// Rebooter triggers an immediate system restart when the safety interlock
// fires.
type Rebooter interface {
	Reboot() error
}

const (
	DefaultGain        = 0.1  // voltage steps per degree of error
	DefaultVoltageStep = 6250 // µV
)

// Params holds the controller's tunables. Each array is indexed by a
// device's logical position in Devices, with element 0 as the fallback
// default (see internal/params).
type Params struct {
	// Devices are the managed device ids, in logical order.
	Devices []int

	// Voltages in microvolts.
	MinVoltage   []int
	MaxVoltage   []int
	StartVoltage []int

	// Temperatures in degrees Celsius.
	TargetTemperature []int
	MaxTemperature    []int

	// Clock offsets in MHz; a resolved zero means "leave unchanged".
	BaseClockOffset   []int
	MemoryClockOffset []int

	// Gain is the proportional term in voltage steps per degree.
	Gain float64
	// VoltageStep is the quantization step in microvolts.
	VoltageStep int
	// PState is the performance state clock offsets apply to.
	PState int
}

// DeviceStatus is a read-only view of one device's control state.
type DeviceStatus struct {
	Device   int
	Setpoint float64 // continuous clamped setpoint, µV
	Voltage  int     // quantized setpoint, µV
}
