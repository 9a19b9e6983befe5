// Package main implements the IWR1443 radar telemetry collector: two
// asynchronous UART endpoints multiplexed by a completion reactor, a
// resynchronizing frame decoder, and a set of JSON record sinks.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/llhlol/IWR1443-data-collection/config"
	"github.com/llhlol/IWR1443-data-collection/metric"
	"github.com/llhlol/IWR1443-data-collection/output/file"
	"github.com/llhlol/IWR1443-data-collection/output/natspub"
	"github.com/llhlol/IWR1443-data-collection/output/redispub"
	"github.com/llhlol/IWR1443-data-collection/output/wsbroadcast"
	"github.com/llhlol/IWR1443-data-collection/pkg/retry"
	"github.com/llhlol/IWR1443-data-collection/radar"
	"github.com/llhlol/IWR1443-data-collection/serial"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "iwr1443-collect"
)

// shutdownTimeout bounds each sink's graceful stop.
const shutdownTimeout = 5 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("collector failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		fmt.Println("configuration is valid")
		return nil
	}

	logger, sink := setupLogger(cfg.Log)
	defer sink.Close()
	slog.SetDefault(logger)

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logger.Info("starting collector",
		"control_port", cfg.ControlPort, "data_port", cfg.DataPort)

	ctx := context.Background()

	// Metrics exposure is optional; a nil registry disables collection.
	var registry *metric.Registry
	if cfg.Metrics.Enabled {
		registry = metric.NewRegistry()
		metricsServer := metric.NewServer(cfg.Metrics.Addr, "/metrics", registry)
		if err := metricsServer.Start(); err != nil {
			return err
		}
		defer func() { _ = metricsServer.Stop(shutdownTimeout) }()
	}

	frameSink, stopSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopSinks()

	reactor := serial.NewReactor(logger.With("component", "reactor"))
	if err := reactor.Initialize(); err != nil {
		return err
	}

	control := radar.NewControlPort(radar.ControlPortDeps{
		Reactor: reactor,
		Logger:  logger.With("component", "control-port"),
	})
	if err := control.Initialize(cfg.ControlPort); err != nil {
		return err
	}

	data := radar.NewDataPort(radar.DataPortDeps{
		Reactor:  reactor,
		Sink:     frameSink,
		Registry: registry,
		Logger:   logger.With("component", "data-port"),
	})
	if err := data.Initialize(cfg.DataPort); err != nil {
		_ = control.Close()
		return err
	}

	if err := reactor.Register(control.Port()); err != nil {
		return err
	}
	if err := reactor.Register(data.Port()); err != nil {
		return err
	}

	g := &errgroup.Group{}
	g.Go(reactor.Run)

	runConsole(control, reactor, logger)

	if err := g.Wait(); err != nil {
		logger.Error("reactor stopped with error", "error", err)
	}

	// Endpoints outlive the reactor loop; close them only afterwards.
	if err := data.Close(); err != nil {
		logger.Warn("closing data port", "error", err)
	}
	if err := control.Close(); err != nil {
		logger.Warn("closing control port", "error", err)
	}

	logger.Info("collector stopped", "frames_decoded", data.FramesDecoded())
	return nil
}

// loadConfiguration merges defaults, the optional config file, and flag
// overrides, then validates the result.
func loadConfiguration(cliCfg *CLIConfig) (config.Config, error) {
	cfg := config.DefaultConfig()
	if cliCfg.ConfigPath != "" {
		var err error
		cfg, err = config.Load(cliCfg.ConfigPath)
		if err != nil {
			return cfg, err
		}
	}

	if cliCfg.ControlPort != "" {
		cfg.ControlPort = cliCfg.ControlPort
	}
	if cliCfg.DataPort != "" {
		cfg.DataPort = cliCfg.DataPort
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFile != "" {
		cfg.Log.File = cliCfg.LogFile
	}
	if cliCfg.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = cliCfg.MetricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildSinks constructs the configured outputs and returns the combined
// frame sink plus a stop function. A nil sink sends records to stdout.
func buildSinks(ctx context.Context, cfg config.Config, logger *slog.Logger) (radar.Sink, func(), error) {
	var writers []func([]byte)
	var stops []func()

	if fc := cfg.Outputs.File; fc != nil {
		out := file.NewOutput(*fc, logger.With("component", "file-output"))
		if err := out.Initialize(); err != nil {
			return nil, nil, err
		}
		if err := out.Start(); err != nil {
			return nil, nil, err
		}
		writers = append(writers, out.Write)
		stops = append(stops, func() { _ = out.Stop(shutdownTimeout) })
	}

	if nc := cfg.Outputs.NATS; nc != nil {
		out := natspub.NewOutput(*nc, logger.With("component", "nats-output"))
		if err := retry.Do(ctx, retry.Quick(), out.Start); err != nil {
			return nil, nil, err
		}
		writers = append(writers, out.Write)
		stops = append(stops, func() { _ = out.Stop(shutdownTimeout) })
	}

	if rc := cfg.Outputs.Redis; rc != nil {
		out := redispub.NewOutput(*rc, logger.With("component", "redis-output"))
		if err := retry.Do(ctx, retry.Quick(), func() error { return out.Start(ctx) }); err != nil {
			return nil, nil, err
		}
		writers = append(writers, out.Write)
		stops = append(stops, func() { _ = out.Stop() })
	}

	if wc := cfg.Outputs.WebSocket; wc != nil {
		out := wsbroadcast.NewOutput(*wc, logger.With("component", "ws-output"))
		if err := out.Start(); err != nil {
			return nil, nil, err
		}
		writers = append(writers, out.Write)
		stops = append(stops, func() { _ = out.Stop(shutdownTimeout) })
	}

	stopAll := func() {
		// Stop in reverse construction order.
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if len(writers) == 0 {
		return nil, stopAll, nil
	}
	return func(record []byte) {
		for _, w := range writers {
			w(record)
		}
	}, stopAll, nil
}

// runConsole forwards stdin lines to the radar CLI until the operator
// types "exit", stdin closes, or a termination signal arrives.
func runConsole(control *radar.ControlPort, reactor *serial.Reactor, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case sig := <-sigCh:
			logger.Info("signal received", "signal", sig.String())
			reactor.Quit()
			return
		case line, ok := <-lines:
			if !ok || line == "exit" {
				reactor.Quit()
				return
			}
			control.SendCommand(line)
		}
	}
}
