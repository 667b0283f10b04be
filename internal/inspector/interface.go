package inspector

import "time"

// Applier pushes a batch of device-scoped parameter commands to the GPU
// configuration utility. An empty batch must be a no-op.
type Applier interface {
	Apply(commands []Command) error
}

const (
	DefaultPath    = "nvidiaInspector"
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	// Path is the configuration utility executable.
	Path string
	// Timeout applies to each invocation.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Path:    DefaultPath,
		Timeout: DefaultTimeout,
	}
}
