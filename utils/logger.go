package utils

import (
	"log"
	"sync"

	"turnero/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "turnero"

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// newLogger builds the process logger: JSON at info in production, colored
// console at debug elsewhere. LOG_LEVEL overrides the level in both.
func newLogger() *zap.Logger {
	var cfg zap.Config
	if config.IsProduction() {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl := config.AppConfig.LogLevel; lvl != "" {
		parsed, err := zapcore.ParseLevel(lvl)
		if err != nil {
			log.Printf("ignoring LOG_LEVEL %q: %v", lvl, err)
		} else {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	l, err := cfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return l.With(zap.String("service", serviceName), zap.String("env", config.GetEnv()))
}

// GetLogger returns the process-wide logger, building it on first use.
func GetLogger() *zap.Logger {
	loggerOnce.Do(func() { logger = newLogger() })
	return logger
}
