package config

import (
	"fmt"
	"os"
	"time"

	"codeberg.org/mutker/nvoltctl/internal/errors"
	"codeberg.org/mutker/nvoltctl/internal/params"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval         = time.Second
	DefaultClockOffsetDelay = 5 * time.Minute
	DefaultGain             = 0.1
	DefaultVoltageStep      = 6250
	DefaultToolTimeout      = 10 * time.Second
	DefaultWindow           = 10

	envConfig = "NVOLTCTL_CONFIG"
)

type Config struct {
	// Scheduling
	Interval         time.Duration `mapstructure:"interval"`
	ClockOffsetDelay time.Duration `mapstructure:"clock_offset_delay"`

	// Control law
	Gain        float64 `mapstructure:"gain"`
	VoltageStep int     `mapstructure:"voltage_step"`
	PState      int     `mapstructure:"pstate"`

	// Per-device arrays, indexed by logical position in the managed list;
	// element 0 is the default for unlisted devices. Devices is the
	// optional allowlist; empty means all discovered devices.
	Devices           []int `mapstructure:"devices"`
	MinVoltage        []int `mapstructure:"min_voltage"`
	MaxVoltage        []int `mapstructure:"max_voltage"`
	StartVoltage      []int `mapstructure:"start_voltage"`
	TargetTemperature []int `mapstructure:"target_temperature"`
	MaxTemperature    []int `mapstructure:"max_temperature"`
	BaseClockOffset   []int `mapstructure:"base_clock_offset"`
	MemoryClockOffset []int `mapstructure:"memory_clock_offset"`

	// External utilities
	QueryPath     string        `mapstructure:"query_path"`
	InspectorPath string        `mapstructure:"inspector_path"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
	Stream        bool          `mapstructure:"stream"`
	Window        int           `mapstructure:"window"`

	// Modes
	FailFast bool `mapstructure:"fail_fast"`
	Monitor  bool `mapstructure:"monitor"`
	Debug    bool `mapstructure:"debug"`
	Verbose  bool `mapstructure:"verbose"`

	// Metrics recording
	Metrics   bool   `mapstructure:"metrics"`
	MetricsDB string `mapstructure:"metrics_db"`
}

func Load() (*Config, error) {
	return LoadWithArgs(os.Args[1:])
}

func LoadWithArgs(args []string) (*Config, error) {
	errFactory := errors.New()

	flags := pflag.NewFlagSet("nvoltctl", pflag.ContinueOnError)
	configFile := flags.String("config", "", "Path to config file")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.Bool("monitor", false, "Only monitor; never apply changes")
	flags.Bool("stream", false, "Stream telemetry instead of polling per tick")
	flags.Duration("interval", DefaultInterval, "Interval between control ticks")
	flags.Duration("clock-offset-delay", DefaultClockOffsetDelay, "Delay before the one-shot clock offset application")
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	if *configFile == "" {
		*configFile = os.Getenv(envConfig)
	}
	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("nvoltctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Command line flags override config file values
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		v.Set(flagKey(f.Name), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("clock_offset_delay", DefaultClockOffsetDelay)
	v.SetDefault("gain", DefaultGain)
	v.SetDefault("voltage_step", DefaultVoltageStep)
	v.SetDefault("pstate", 0)
	v.SetDefault("min_voltage", []int{700000})
	v.SetDefault("max_voltage", []int{925000})
	v.SetDefault("start_voltage", []int{850000})
	v.SetDefault("target_temperature", []int{60})
	v.SetDefault("max_temperature", []int{90})
	v.SetDefault("query_path", "nvidia-smi")
	v.SetDefault("inspector_path", "nvidiaInspector")
	v.SetDefault("tool_timeout", DefaultToolTimeout)
	v.SetDefault("window", DefaultWindow)
	v.SetDefault("fail_fast", true)
	v.SetDefault("metrics_db", "/var/lib/nvoltctl/metrics.db")
}

func flagKey(name string) string {
	switch name {
	case "clock-offset-delay":
		return "clock_offset_delay"
	default:
		return name
	}
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.New(errors.ErrInvalidInterval)
	}
	if c.ClockOffsetDelay < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "clock_offset_delay must not be negative")
	}
	if c.Gain <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "gain must be positive")
	}
	if c.VoltageStep <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "voltage_step must be positive")
	}
	if c.Window <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "window must be positive")
	}
	if c.QueryPath == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "query_path is empty")
	}
	if c.InspectorPath == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "inspector_path is empty")
	}

	required := map[string][]int{
		"min_voltage":        c.MinVoltage,
		"max_voltage":        c.MaxVoltage,
		"start_voltage":      c.StartVoltage,
		"target_temperature": c.TargetTemperature,
		"max_temperature":    c.MaxTemperature,
	}
	for name, values := range required {
		if len(values) == 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, name+" is empty")
		}
	}

	// min <= start <= max must hold at every logical position any of the
	// voltage arrays mentions, or the control law can start out of bounds.
	span := max(len(c.MinVoltage), max(len(c.MaxVoltage), len(c.StartVoltage)))
	for i := 0; i < span; i++ {
		minV, _ := params.Resolve(c.MinVoltage, i)
		maxV, _ := params.Resolve(c.MaxVoltage, i)
		start, _ := params.Resolve(c.StartVoltage, i)
		if minV > start || start > maxV {
			return errFactory.WithData(errors.ErrInvalidConfig,
				fmt.Sprintf("position %d: need min_voltage <= start_voltage <= max_voltage, got %d <= %d <= %d",
					i, minV, start, maxV))
		}
	}

	return nil
}
