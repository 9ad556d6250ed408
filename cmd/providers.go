package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/infra/telemetry"
)

// ProvideLogger builds the service-wide slog.Logger: leveled, json or
// text, rotated to a file when one is configured, bridged to OTLP when
// telemetry is on. The level follows config file edits at runtime.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Log.Level))

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.Telemetry.Enabled {
		// Fan records out to the collector as well. The bridge rides the
		// global provider, which the telemetry module installs on start.
		handler = slogmulti.Fanout(handler, otelslog.NewHandler(telemetry.ServiceName))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// [LIVE_RELOAD]
	// Editing log.level in the config file takes effect without a restart.
	cfg.Watch(func(fresh *config.Config) {
		next := parseLevel(fresh.Log.Level)
		if next != level.Level() {
			level.Set(next)
			logger.Info("log level changed", "level", fresh.Log.Level)
		}
	})

	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ProvideWatermillLogger adapts the service logger for the broker stack.
func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}
