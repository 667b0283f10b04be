package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/nvoltctl/internal/config"
	"codeberg.org/mutker/nvoltctl/internal/control"
	"codeberg.org/mutker/nvoltctl/internal/errors"
	"codeberg.org/mutker/nvoltctl/internal/inspector"
	"codeberg.org/mutker/nvoltctl/internal/logger"
	"codeberg.org/mutker/nvoltctl/internal/metrics"
	"codeberg.org/mutker/nvoltctl/internal/pid"
	"codeberg.org/mutker/nvoltctl/internal/smi"
	"codeberg.org/mutker/nvoltctl/internal/system"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(system.ExitFailure)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Error().Err(err).Msg("failed to write pid file")
		os.Exit(system.ExitFailure)
	}

	code := run(cfg)

	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("failed to remove pid file")
	}
	logger.Info().Msg("Exiting...")

	os.Exit(code)
}

func run(cfg *config.Config) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	reader, err := smi.NewReader(smi.Config{
		Path:     cfg.QueryPath,
		Fields:   []smi.Field{smi.FieldTemperature, smi.FieldPower},
		Window:   cfg.Window,
		Timeout:  cfg.ToolTimeout,
		Interval: cfg.Interval,
	}, logger.Default())
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize telemetry reader")
		return system.ExitFailure
	}

	// Discovery: a first snapshot tells us which devices exist.
	if err := reader.Poll(); err != nil {
		logger.Error().Err(err).Msg("initial telemetry query failed")
		return system.ExitFailure
	}
	discovered := reader.Devices()
	if len(discovered) == 0 {
		logger.Error().Msg("no GPU devices discovered")
		return system.ExitNoDevices
	}
	logger.Info().Ints("devices", discovered).Msg("Discovered GPU devices")

	managed := managedDevices(cfg.Devices, discovered)
	if len(managed) == 0 {
		logger.Error().Msg("no managed devices left after applying allowlist")
		return system.ExitNoDevices
	}

	emitter, err := inspector.NewEmitter(inspector.Config{
		Path:    cfg.InspectorPath,
		Timeout: cfg.ToolTimeout,
	}, logger.Default())
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize configuration emitter")
		return system.ExitFailure
	}

	var applier inspector.Applier = emitter
	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated; configuration changes are logged, not applied")
		applier = monitorApplier{}
	}

	ctrl, err := control.New(control.Params{
		Devices:           managed,
		MinVoltage:        cfg.MinVoltage,
		MaxVoltage:        cfg.MaxVoltage,
		StartVoltage:      cfg.StartVoltage,
		TargetTemperature: cfg.TargetTemperature,
		MaxTemperature:    cfg.MaxTemperature,
		BaseClockOffset:   cfg.BaseClockOffset,
		MemoryClockOffset: cfg.MemoryClockOffset,
		Gain:              cfg.Gain,
		VoltageStep:       cfg.VoltageStep,
		PState:            cfg.PState,
	}, reader, applier, system.NewRebooter(logger.Default()), logger.Default())
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize controller")
		return system.ExitFailure
	}

	collector, err := metrics.NewService(metrics.Config{
		Enabled: cfg.Metrics,
		DBPath:  cfg.MetricsDB,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize metrics")
		return system.ExitFailure
	}
	defer collector.Close()

	if cfg.Stream {
		if err := reader.Stream(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to start telemetry stream")
			return system.ExitFailure
		}
	}

	if err := loop(ctx, cfg, reader, ctrl, collector); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
		return system.ExitFailure
	}

	return system.ExitOK
}

// loop runs the repeating control tick and the one-shot clock-offset timer.
// Tick work, including blocking emission, completes before the next tick is
// serviced; ticks never overlap.
func loop(ctx context.Context, cfg *config.Config, reader *smi.Reader, ctrl *control.Controller, collector metrics.Collector) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	offsets := time.After(cfg.ClockOffsetDelay)
	lastVoltages := make(map[int]int)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-offsets:
			offsets = nil
			if err := ctrl.ApplyClockOffsets(); err != nil {
				if cfg.FailFast {
					return err
				}
				logger.Error().Err(err).Msg("Clock offset application failed")
			}
		case <-ticker.C:
			err := tick(ctx, cfg, reader, ctrl, collector, lastVoltages)
			if err == nil {
				continue
			}
			if errors.HasCode(err, control.ErrRebootTriggered) {
				logger.Warn().Msg("Reboot triggered; stopping control loop")
				return nil
			}
			if cfg.FailFast {
				return err
			}
			if failure, ok := inspector.AsToolFailure(err); ok {
				logger.Error().
					Int("exit_code", failure.ExitCode).
					Str("stderr", failure.Stderr).
					Msg("Configuration utility rejected commands; skipping cycle")
			} else {
				logger.Error().Err(err).Msg("Control tick failed; skipping cycle")
			}
		}
	}
}

func tick(ctx context.Context, cfg *config.Config, reader *smi.Reader, ctrl *control.Controller, collector metrics.Collector, lastVoltages map[int]int) error {
	if !cfg.Stream {
		if err := reader.Poll(); err != nil {
			// Readings stay absent; the controller skips affected devices.
			logger.Warn().Err(err).Msg("Telemetry poll failed")
		}
	}

	if err := ctrl.Tick(); err != nil {
		return err
	}

	recordMetrics(ctx, reader, ctrl, collector, lastVoltages)

	return nil
}

func recordMetrics(ctx context.Context, reader *smi.Reader, ctrl *control.Controller, collector metrics.Collector, lastVoltages map[int]int) {
	now := time.Now()
	for _, status := range ctrl.Status() {
		temperature, _ := reader.Temperature(status.Device)
		previous, seen := lastVoltages[status.Device]
		emitted := !seen || previous != status.Voltage
		lastVoltages[status.Device] = status.Voltage

		snapshot := &metrics.Snapshot{
			Timestamp:   now,
			Device:      status.Device,
			Temperature: temperature,
			Setpoint:    status.Setpoint,
			Voltage:     status.Voltage,
			Emitted:     emitted,
		}
		if err := collector.Record(ctx, snapshot); err != nil {
			logger.Debug().Err(err).Msg("Failed to record control trace")
		}
	}
}

func managedDevices(configured, discovered []int) []int {
	if len(configured) == 0 {
		return discovered
	}

	present := make(map[int]bool, len(discovered))
	for _, device := range discovered {
		present[device] = true
	}

	managed := make([]int, 0, len(configured))
	for _, device := range configured {
		if !present[device] {
			logger.Warn().Int("device", device).Msg("Configured device not discovered; ignoring")
			continue
		}
		managed = append(managed, device)
	}

	return managed
}

// monitorApplier logs what would change without invoking the configuration
// utility.
type monitorApplier struct{}

func (monitorApplier) Apply(commands []inspector.Command) error {
	for _, command := range commands {
		logger.Info().Str("command", command.String()).Msg("Monitor mode: suppressed configuration change")
	}

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
