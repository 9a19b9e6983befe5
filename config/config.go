// Package config defines the collector's configuration: serial port
// names, logging, metrics exposure, and the set of frame sinks. Files may
// be JSON or YAML; CLI flags override file values in cmd.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llhlol/IWR1443-data-collection/errors"
)

// Config is the complete collector configuration.
type Config struct {
	ControlPort string        `json:"control_port" yaml:"control_port"`
	DataPort    string        `json:"data_port"    yaml:"data_port"`
	Log         LogConfig     `json:"log"          yaml:"log"`
	Metrics     MetricsConfig `json:"metrics"      yaml:"metrics"`
	Outputs     OutputsConfig `json:"outputs"      yaml:"outputs"`
}

// LogConfig controls the buffered log sink.
type LogConfig struct {
	Level      string `json:"level"       yaml:"level"`       // trace|debug|info|warn|error|off
	File       string `json:"file"        yaml:"file"`        // empty means stderr
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"` // rotation threshold for file logs
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr"    yaml:"addr"`
}

// OutputsConfig selects frame sinks. A nil entry disables that sink; with
// every entry nil, records go to stdout.
type OutputsConfig struct {
	File      *FileOutputConfig      `json:"file,omitempty"      yaml:"file,omitempty"`
	NATS      *NATSOutputConfig      `json:"nats,omitempty"      yaml:"nats,omitempty"`
	Redis     *RedisOutputConfig     `json:"redis,omitempty"     yaml:"redis,omitempty"`
	WebSocket *WebSocketOutputConfig `json:"websocket,omitempty" yaml:"websocket,omitempty"`
}

// FileOutputConfig configures the JSON-lines file sink.
type FileOutputConfig struct {
	Directory     string        `json:"directory"      yaml:"directory"`
	FilePrefix    string        `json:"file_prefix"    yaml:"file_prefix"`
	Append        bool          `json:"append"         yaml:"append"`
	BufferSize    int           `json:"buffer_size"    yaml:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// NATSOutputConfig configures the NATS publisher sink.
type NATSOutputConfig struct {
	URL     string `json:"url"     yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// RedisOutputConfig configures the Redis publisher sink.
type RedisOutputConfig struct {
	Addr      string `json:"addr"       yaml:"addr"`
	Password  string `json:"password"   yaml:"password"`
	DB        int    `json:"db"         yaml:"db"`
	Channel   string `json:"channel"    yaml:"channel"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// WebSocketOutputConfig configures the live broadcast sink.
type WebSocketOutputConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns the flagless out-of-the-box configuration: both
// UARTs on the usual Linux device nodes, info logging to stderr, metrics
// off, and a JSON-lines file in the working directory.
func DefaultConfig() Config {
	return Config{
		ControlPort: "/dev/ttyACM0",
		DataPort:    "/dev/ttyACM1",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Outputs: OutputsConfig{
			File: &FileOutputConfig{
				Directory:     ".",
				FilePrefix:    "data",
				Append:        true,
				BufferSize:    64,
				FlushInterval: time.Second,
			},
		},
	}
}

// Load reads a configuration file, starting from defaults. The extension
// picks the format: .yaml/.yml parse as YAML, everything else as JSON.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "config", "Load", "read "+path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	default:
		err = json.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return cfg, errors.WrapInvalid(err, "config", "Load", "parse "+path)
	}

	return cfg, nil
}

// validLogLevels for Validate.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "off": true,
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.ControlPort == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Config", "Validate", "control_port is required")
	}
	if c.DataPort == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Config", "Validate", "data_port is required")
	}
	if c.ControlPort == c.DataPort {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "control_port and data_port must differ")
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown log level %q", errors.ErrInvalidConfig, c.Log.Level),
			"Config", "Validate", "log level check")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "metrics.addr is required when metrics are enabled")
	}

	if f := c.Outputs.File; f != nil {
		if f.Directory == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"Config", "Validate", "outputs.file.directory is required")
		}
		if f.BufferSize < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"Config", "Validate", "outputs.file.buffer_size cannot be negative")
		}
	}
	if n := c.Outputs.NATS; n != nil {
		if n.URL == "" || n.Subject == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"Config", "Validate", "outputs.nats requires url and subject")
		}
	}
	if r := c.Outputs.Redis; r != nil {
		if r.Addr == "" || r.Channel == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"Config", "Validate", "outputs.redis requires addr and channel")
		}
	}
	if w := c.Outputs.WebSocket; w != nil {
		if w.Addr == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"Config", "Validate", "outputs.websocket requires addr")
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}
