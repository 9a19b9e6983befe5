package main

import (
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/llhlol/IWR1443-data-collection/config"
	"github.com/llhlol/IWR1443-data-collection/pkg/logbuf"
)

func parseLevel(level string) logbuf.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logbuf.LevelTrace
	case "debug":
		return logbuf.LevelDebug
	case "info":
		return logbuf.LevelInfo
	case "warn":
		return logbuf.LevelWarning
	case "error":
		return logbuf.LevelError
	case "off":
		return logbuf.LevelOff
	default:
		return logbuf.LevelInfo
	}
}

// setupLogger builds the buffered log sink and a slog logger on top of
// it. The sink is returned so main can flush residue on shutdown.
func setupLogger(cfg config.LogConfig) (*slog.Logger, *logbuf.Sink) {
	sink := logbuf.New(parseLevel(cfg.Level))

	if cfg.File != "" {
		sink.SetWriter(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		})
	}

	logger := slog.New(logbuf.NewHandler(sink)).With(
		"service", appName,
		"version", Version,
	)
	return logger, sink
}
