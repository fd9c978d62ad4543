package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/pkg/database"
	"github.com/JaimeStill/salesflow/pkg/lifecycle"
	"github.com/JaimeStill/salesflow/pkg/query"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := database.Config{}
	require.NoError(t, cfg.Finalize(nil))

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"driver", cfg.Driver, database.DriverSQLite},
		{"path", cfg.Path, "data/warehouse.db"},
		{"host", cfg.Host, ""},
		{"port", cfg.Port, 0},
		{"max_open_conns", cfg.MaxOpenConns, 25},
		{"conn_timeout", cfg.ConnTimeout, "5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestFinalizePgxDefaults(t *testing.T) {
	t.Setenv("TEST_DB_DRIVER", "pgx")

	cfg := database.Config{Name: "sales", User: "etl", Enabled: true}
	require.NoError(t, cfg.Finalize(&database.Env{Driver: "TEST_DB_DRIVER"}))

	assert.Equal(t, database.DriverPgx, cfg.Driver)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
}

func TestFinalizePgxRequiresName(t *testing.T) {
	cfg := database.Config{Enabled: true, Driver: database.DriverPgx, User: "etl"}
	assert.ErrorIs(t, cfg.Finalize(nil), database.ErrInvalidConfig)
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DB_ENABLED", "true")
	t.Setenv("TEST_DB_DRIVER", "sqlite")
	t.Setenv("TEST_DB_PATH", "/tmp/wh.db")
	t.Setenv("TEST_DB_PORT", "5433")

	cfg := database.Config{}
	require.NoError(t, cfg.Finalize(&database.Env{
		Enabled: "TEST_DB_ENABLED",
		Driver:  "TEST_DB_DRIVER",
		Path:    "TEST_DB_PATH",
		Port:    "TEST_DB_PORT",
	}))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, database.DriverSQLite, cfg.Driver)
	assert.Equal(t, "/tmp/wh.db", cfg.Path)
	assert.Equal(t, 5433, cfg.Port)
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     database.Config
		wantErr bool
	}{
		{"disabled pgx needs nothing", database.Config{Driver: "pgx"}, false},
		{"enabled pgx needs name", database.Config{Enabled: true, Driver: "pgx", User: "u"}, true},
		{"enabled pgx needs user", database.Config{Enabled: true, Driver: "pgx", Name: "n"}, true},
		{"enabled pgx complete", database.Config{Enabled: true, Driver: "pgx", Name: "n", User: "u"}, false},
		{"enabled sqlite", database.Config{Enabled: true, Driver: "sqlite"}, false},
		{"unknown driver", database.Config{Driver: "oracle"}, true},
		{"bad timeout", database.Config{ConnTimeout: "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUnknownDriverSentinel(t *testing.T) {
	cfg := database.Config{Driver: "oracle"}
	assert.ErrorIs(t, cfg.Finalize(nil), database.ErrUnknownDriver)
}

func TestMerge(t *testing.T) {
	base := database.Config{Driver: "pgx", Host: "localhost", Port: 5432}
	base.Merge(&database.Config{Enabled: true, Host: "prodhost"})

	assert.True(t, base.Enabled)
	assert.Equal(t, "prodhost", base.Host)
	assert.Equal(t, 5432, base.Port)
	assert.Equal(t, "pgx", base.Driver)
}

func TestDsn(t *testing.T) {
	pg := database.Config{Driver: "pgx", Host: "db", Port: 5432, Name: "sales", User: "etl", Password: "pw", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 dbname=sales user=etl password=pw sslmode=disable", pg.Dsn())

	lite := database.Config{Driver: "sqlite", Path: "wh.db"}
	assert.Contains(t, lite.Dsn(), "file:wh.db?")
}

func TestSQLiteStartAndShutdown(t *testing.T) {
	cfg := database.Config{Enabled: true, Driver: "sqlite", Path: filepath.Join(t.TempDir(), "wh.db")}
	require.NoError(t, cfg.Finalize(nil))

	sys, err := database.New(&cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, query.SQLite, sys.Dialect())
	assert.Equal(t, "sqlite", sys.Driver())

	lc := lifecycle.New(context.Background())
	require.NoError(t, sys.Start(lc))
	require.NoError(t, lc.WaitForStartup())

	var one int
	require.NoError(t, sys.Connection().QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)

	require.NoError(t, lc.Shutdown(5*time.Second))
}

func TestPgxDialect(t *testing.T) {
	cfg := database.Config{Driver: database.DriverPgx, Name: "n", User: "u"}
	require.NoError(t, cfg.Finalize(nil))

	sys, err := database.New(&cfg, zap.NewNop())
	require.NoError(t, err)
	defer sys.Connection().Close()

	assert.Equal(t, query.Postgres, sys.Dialect())
}
