// Package database provides warehouse connection management over
// database/sql with the pgx (PostgreSQL) or modernc (SQLite) driver.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/JaimeStill/salesflow/pkg/lifecycle"
	"github.com/JaimeStill/salesflow/pkg/query"
)

// System manages database connections and lifecycle coordination.
type System interface {
	// Connection returns the underlying database connection pool.
	Connection() *sql.DB
	// Driver returns the database/sql driver name.
	Driver() string
	// Dialect returns the SQL placeholder and schema conventions of the driver.
	Dialect() query.Dialect
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

// DialectOf maps a driver name to its SQL dialect.
func DialectOf(driver string) query.Dialect {
	if driver == DriverSQLite {
		return query.SQLite
	}
	return query.Postgres
}

type database struct {
	conn        *sql.DB
	driver      string
	logger      *zap.Logger
	connTimeout time.Duration
}

// New creates a database system with the given configuration.
// It calls sql.Open to validate the DSN and configure pool parameters,
// but does not establish a connection until Start is called.
func New(cfg *Config, logger *zap.Logger) (System, error) {
	db, err := sql.Open(cfg.Driver, cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		driver:      cfg.Driver,
		logger:      logger.With(zap.String("system", "database"), zap.String("driver", cfg.Driver)),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Driver() string {
	return d.driver
}

func (d *database) Dialect() query.Dialect {
	return DialectOf(d.driver)
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Debug("starting database connection")

	lc.OnStartup(func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, d.connTimeout)
		defer cancel()

		if err := d.conn.PingContext(pingCtx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		d.logger.Debug("database connection established")
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", zap.Error(err))
			return
		}

		d.logger.Debug("database connection closed")
	})

	return nil
}
