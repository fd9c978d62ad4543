// Package config loads the salesflow configuration from a TOML base file,
// an optional environment overlay, and SALESFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/salesflow/internal/audit"
	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/internal/metrics"
	"github.com/JaimeStill/salesflow/internal/silver"
	"github.com/JaimeStill/salesflow/pkg/database"
	"github.com/JaimeStill/salesflow/pkg/logging"
	"github.com/JaimeStill/salesflow/pkg/pagination"
	"github.com/JaimeStill/salesflow/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvSalesflowEnv             = "SALESFLOW_ENV"
	EnvSalesflowShutdownTimeout = "SALESFLOW_SHUTDOWN_TIMEOUT"
)

var loggingEnv = &logging.Env{
	Level:  "SALESFLOW_LOG_LEVEL",
	Format: "SALESFLOW_LOG_FORMAT",
}

var silverEnv = &silver.Env{
	Encoding:    "SALESFLOW_SILVER_ENCODING",
	Workers:     "SALESFLOW_SILVER_WORKERS",
	MaxFileSize: "SALESFLOW_SILVER_MAX_FILE_SIZE",
}

var goldEnv = &gold.Env{
	NaturalKey: "SALESFLOW_GOLD_NATURAL_KEY",
	AutoKey:    "SALESFLOW_GOLD_AUTO_KEY",
	DimStart:   "SALESFLOW_GOLD_DIM_START",
	DimEnd:     "SALESFLOW_GOLD_DIM_END",
}

var auditEnv = &audit.Env{
	MaxUnitPrice:     "SALESFLOW_AUDIT_MAX_UNIT_PRICE",
	LookbackDays:     "SALESFLOW_AUDIT_LOOKBACK_DAYS",
	WindowDays:       "SALESFLOW_AUDIT_WINDOW_DAYS",
	MinHistoryDays:   "SALESFLOW_AUDIT_MIN_HISTORY_DAYS",
	VolumeThreshold:  "SALESFLOW_AUDIT_VOLUME_THRESHOLD",
	SpikeRatio:       "SALESFLOW_AUDIT_SPIKE_RATIO",
	RevenueTolerance: "SALESFLOW_AUDIT_REVENUE_TOLERANCE",
	Timezone:         "SALESFLOW_AUDIT_TIMEZONE",
}

var metricsEnv = &metrics.Env{
	Textfile:       "SALESFLOW_METRICS_TEXTFILE",
	PushgatewayURL: "SALESFLOW_METRICS_PUSHGATEWAY_URL",
	Job:            "SALESFLOW_METRICS_JOB",
}

var databaseEnv = &database.Env{
	Enabled:         "SALESFLOW_DB_ENABLED",
	Driver:          "SALESFLOW_DB_DRIVER",
	Path:            "SALESFLOW_DB_PATH",
	Host:            "SALESFLOW_DB_HOST",
	Port:            "SALESFLOW_DB_PORT",
	Name:            "SALESFLOW_DB_NAME",
	User:            "SALESFLOW_DB_USER",
	Password:        "SALESFLOW_DB_PASSWORD",
	SSLMode:         "SALESFLOW_DB_SSL_MODE",
	MaxOpenConns:    "SALESFLOW_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SALESFLOW_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SALESFLOW_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SALESFLOW_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Enabled:          "SALESFLOW_STORAGE_ENABLED",
	Provider:         "SALESFLOW_STORAGE_PROVIDER",
	LocalDir:         "SALESFLOW_STORAGE_LOCAL_DIR",
	ContainerName:    "SALESFLOW_STORAGE_CONTAINER_NAME",
	ConnectionString: "SALESFLOW_STORAGE_CONNECTION_STRING",
	ServiceURL:       "SALESFLOW_STORAGE_SERVICE_URL",
	Prefix:           "SALESFLOW_STORAGE_PREFIX",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "SALESFLOW_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "SALESFLOW_PAGINATION_MAX_PAGE_SIZE",
}

// Config is the root configuration of the pipeline.
type Config struct {
	Paths           PathsConfig       `toml:"paths"`
	Logging         logging.Config    `toml:"logging"`
	Silver          silver.Config     `toml:"silver"`
	Gold            gold.Config       `toml:"gold"`
	Audit           audit.Config      `toml:"audit"`
	Metrics         metrics.Config    `toml:"metrics"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	Pagination      pagination.Config `toml:"pagination"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
}

// Env returns the SALESFLOW_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvSalesflowEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config at path, applies the SALESFLOW_ENV overlay
// found next to it, and finalizes all values. An empty path means
// config.toml in the working directory, which may be absent; an explicit
// path must exist. A .env file in the working directory is loaded first
// without overriding variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = BaseConfigFile
	}

	cfg := &Config{}
	loaded, err := load(path)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if overlay := overlayPath(path); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	c.Paths.Merge(&overlay.Paths)
	c.Logging.Merge(&overlay.Logging)
	c.Silver.Merge(&overlay.Silver)
	c.Gold.Merge(&overlay.Gold)
	c.Audit.Merge(&overlay.Audit)
	c.Metrics.Merge(&overlay.Metrics)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Paths.Finalize(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.Logging.Finalize(loggingEnv); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Silver.Finalize(silverEnv); err != nil {
		return fmt.Errorf("silver: %w", err)
	}
	if err := c.Gold.Finalize(goldEnv); err != nil {
		return fmt.Errorf("gold: %w", err)
	}
	if err := c.Audit.Finalize(auditEnv); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if err := c.Metrics.Finalize(metricsEnv); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvSalesflowShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	if env := os.Getenv(EnvSalesflowEnv); env != "" {
		path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
