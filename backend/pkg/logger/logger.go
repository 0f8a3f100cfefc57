package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger shared by the CLI and the API server
var Logger *zap.Logger

// Init builds Logger for env. "production" logs JSON from Info up; any other
// env logs coloured console lines from Debug up. An optional level (debug,
// info, warn, error) replaces the env default. Every entry goes to stderr,
// stdout belongs to command output such as `stats --format json`.
func Init(env string, level ...string) error {
	cfg := profile(env)
	if len(level) > 0 {
		lvl, ok, err := parseLevel(level[0])
		if err != nil {
			return err
		}
		if ok {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Logger = built.Named("lifegraph")
	return nil
}

func profile(env string) zap.Config {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// parseLevel reports ok=false for a blank level
func parseLevel(raw string) (zapcore.Level, bool, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zapcore.InfoLevel, false, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return lvl, false, err
	}
	return lvl, true, nil
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns Logger, or a development logger when Init has not run, so
// packages used from tests can log without setup.
func Get() *zap.Logger {
	if Logger == nil {
		fallback, _ := zap.NewDevelopment()
		return fallback
	}
	return Logger
}
