package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/audit"
	"github.com/simas-gestao/simas/internal/config"
	"github.com/simas-gestao/simas/internal/db"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/logging"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `simas init` to create a config file", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the zap logger described by cfg.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, string(cfg.LogFormat))
}

// runtime bundles what the offline commands need.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *db.DB
	entities *entity.Store
}

// openRuntime loads config, opens the database and builds the entity store.
// Callers must call close.
func openRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		entities: entity.NewStore(database, audit.NewStore(database, logger), logger),
	}, nil
}

func (rt *runtime) close() {
	rt.db.Close()
	_ = rt.logger.Sync()
}
