// Package logging configures the global zap logger.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chrisdamba/foodispatch/internal/models"
)

var onceLog sync.Once

// Init replaces the global logger once per process and routes the standard library log
// through it. Later calls are no-ops.
func Init(appName string, config models.LogConfig) error {
	var initErr error
	onceLog.Do(func() {
		logger, err := New(config)
		if err != nil {
			initErr = err
			return
		}

		logger = logger.Named(appName)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
	return initErr
}

func New(config models.LogConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	if config.File != "" {
		zapConfig.OutputPaths = []string{config.File}
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
