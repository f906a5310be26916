// Package logging builds the process-wide zap logger, matching the
// teacher's go/tools/internal/logger configuration: level from env,
// readable development mode, ISO8601 timestamps and caller keys.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kagent-dev/memoryanchor/internal/env"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init builds the global logger. Safe to call multiple times; only the
// first call takes effect.
func Init() {
	once.Do(func() {
		cfg := zap.NewProductionConfig()

		var level zapcore.Level
		if err := level.UnmarshalText([]byte(env.LogLevel.Get())); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(level)
		}

		if os.Getenv("MA_ENV") == "development" {
			cfg.Development = true
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		cfg.EncoderConfig.CallerKey = "caller"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		built, err := cfg.Build()
		if err != nil {
			panic("failed to initialize logger: " + err.Error())
		}
		globalLogger = built
	})
}

// Get returns the global logger, initializing it on first use.
func Get() *zap.Logger {
	if globalLogger == nil {
		Init()
	}
	return globalLogger
}
