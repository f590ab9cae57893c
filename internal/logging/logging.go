// Package logging builds the zap logger every tenor command uses for
// structured output, matching the teacher CLI's zap.NewProductionConfig
// construction with a --verbose debug-level toggle.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger. format selects the encoder ("json" for
// production, anything else for a human-readable console encoder);
// level parses as a zapcore.Level ("debug", "info", "warn", "error").
func New(level, format string) (*zap.Logger, error) {
	var config zap.Config
	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: parsing level %q: %w", level, err)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: building logger: %w", err)
	}
	return logger, nil
}

// NewVerbose builds a development-encoder logger pinned to debug level,
// the shape the CLI's --verbose flag switches to.
func NewVerbose() (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: building verbose logger: %w", err)
	}
	return logger, nil
}
