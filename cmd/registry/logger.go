package main

import (
	"fmt"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/config"
)

// newLogger returns a JSON logger in production and a console logger
// otherwise, both at the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Logging.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build(zap.Fields(zap.String("service", appName)))
}

// loadConfig reads the configuration and builds the matching logger.
func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
