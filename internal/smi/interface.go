package smi

import "time"

// Field identifies a metric column in the query utility's CSV output. The
// device index is always the first column and is not listed as a field.
type Field string

const (
	FieldTemperature Field = "temperature.gpu"
	FieldPower       Field = "power.draw"
)

const (
	DefaultPath     = "nvidia-smi"
	DefaultWindow   = 10
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = time.Second
)

type Config struct {
	// Path is the query utility executable.
	Path string
	// Fields are the metric columns requested after the device index.
	Fields []Field
	// Window bounds the rolling history kept per device and field.
	Window int
	// Timeout applies to one-shot query invocations.
	Timeout time.Duration
	// Interval is the polling interval passed to the utility in loop mode.
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Path:     DefaultPath,
		Fields:   []Field{FieldTemperature, FieldPower},
		Window:   DefaultWindow,
		Timeout:  DefaultTimeout,
		Interval: DefaultInterval,
	}
}
