// Package infrastructure assembles the shared systems every command needs:
// lifecycle coordination, logging, metrics, and the optional warehouse
// database and artifact storage.
package infrastructure

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/internal/config"
	"github.com/JaimeStill/salesflow/internal/metrics"
	"github.com/JaimeStill/salesflow/pkg/database"
	"github.com/JaimeStill/salesflow/pkg/lifecycle"
	"github.com/JaimeStill/salesflow/pkg/logging"
	"github.com/JaimeStill/salesflow/pkg/storage"
)

// Infrastructure holds the core systems required by the pipeline stages.
// Database and Storage are nil when disabled in configuration.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
	Database  database.System
	Storage   storage.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(ctx context.Context, cfg *config.Config, verbose bool) (*Infrastructure, error) {
	logger, err := logging.New(&cfg.Logging, verbose)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lifecycle.New(ctx),
		Logger:    logger,
		Metrics:   metrics.New(),
	}

	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	if cfg.Storage.Enabled {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	return infra, nil
}

// Start registers the enabled systems with the lifecycle coordinator and
// waits for their startup hooks.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	return i.Lifecycle.WaitForStartup()
}
