package main

import (
	"flag"
	"fmt"
	"os"
)

// CLIConfig holds command-line options. Every option has a working
// default: running the collector with no flags talks to the usual device
// nodes and writes data.jsonl in the working directory.
type CLIConfig struct {
	ConfigPath  string
	ControlPort string
	DataPort    string
	LogLevel    string
	LogFile     string
	MetricsAddr string
	ShowVersion bool
	Validate    bool
}

// parseFlags parses os.Args into a CLIConfig.
func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config", "", "Path to a JSON or YAML configuration file")
	flag.StringVar(&cfg.ControlPort, "control-port", "", "Serial device of the radar CLI UART (overrides config)")
	flag.StringVar(&cfg.DataPort, "data-port", "", "Serial device of the radar telemetry UART (overrides config)")
	flag.StringVar(&cfg.LogLevel, "log-level", "", "Log level: trace|debug|info|warn|error|off (overrides config)")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Log to a rotating file instead of stderr (overrides config)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (overrides config)")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate the configuration and exit")

	flag.Usage = printHelp
	flag.Parse()

	return cfg
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `%s - IWR1443 radar telemetry collector

Reads framed TLV telemetry from the radar's data UART, decodes each frame
to JSON, and fans records out to the configured sinks while forwarding
stdin lines to the radar CLI UART. Type "exit" to shut down cleanly.

Usage:
  %s [flags]

Flags:
`, appName, appName)
	flag.PrintDefaults()
}
