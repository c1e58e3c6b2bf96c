// Package logging provides structured logging configuration.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration options.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// FromEnv reads logging options from WATCHLAB_LOG_LEVEL and
// WATCHLAB_LOG_FORMAT.
func FromEnv() Config {
	return Config{
		Level:  os.Getenv("WATCHLAB_LOG_LEVEL"),
		Format: os.Getenv("WATCHLAB_LOG_FORMAT"),
	}
}

// New creates a new configured zap logger.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, err
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "console"
	}

	var zcfg zap.Config
	if format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Lifecycle transitions go to stdout; errors keep stderr.
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}

// Sync flushes any buffered log entries, ignoring the spurious errors
// syncing a terminal produces.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}
