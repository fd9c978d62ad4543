package warehouse

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/pkg/database"
	"github.com/JaimeStill/salesflow/pkg/query"
)

//go:embed migrations
var migrations embed.FS

// Source returns the embedded migrations for a dialect.
func Source(d query.Dialect) (source.Driver, error) {
	dir := "migrations/postgres"
	if d == query.SQLite {
		dir = "migrations/sqlite"
	}
	src, err := iofs.New(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	return src, nil
}

// Migrate applies every pending migration. It opens a dedicated
// connection because the migrator closes its database on completion.
func Migrate(cfg *database.Config, logger *zap.Logger) error {
	logger = logger.With(zap.String("system", "warehouse"))

	db, err := sql.Open(cfg.Driver, cfg.Dsn())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	dialect := database.DialectOf(cfg.Driver)

	var (
		driver migratedb.Driver
		name   string
	)
	switch dialect {
	case query.SQLite:
		name = "sqlite"
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		name = "postgres"
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}

	src, err := Source(dialect)
	if err != nil {
		driver.Close()
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("warehouse migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
