package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JaimeStill/salesflow/internal/pipeline"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"quality", fmt.Errorf("audit: %w", &pipeline.QualityError{Stage: "audit", Details: "Date Range"}), exitQuality},
		{"canceled", fmt.Errorf("silver: %w", context.Canceled), exitError},
		{"other", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRunSummary(t *testing.T) {
	s := pipeline.NewState(time.Now())
	items := runSummary(s)

	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	assert.Equal(t, []string{"run_id", "warehouse_rows", "published"}, keys)
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"generate", "--days", "3", "--seed", "7", "--end", "20261015"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	for _, day := range []string{"20261013", "20261014", "20261015"} {
		path := filepath.Join("data", "raw", "sales_"+day+".csv")
		assert.FileExists(t, path)
		assert.Contains(t, out.String(), path)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "data", "raw"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Chdir(t.TempDir())

	rootCmd.SetArgs([]string{"load"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, errDatabaseDisabled)
}

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)

	got, err := parseDay("as-of", "20261015", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 12, 0, 0, 0, loc), got)

	for _, bad := range []string{"2026-10-15", "20261345", ""} {
		_, err := parseDay("as-of", bad, loc)
		assert.ErrorContains(t, err, "want YYYYMMDD", bad)
	}
}

func TestNewAppShutsDownWhenStartFails(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SALESFLOW_DB_ENABLED", "true")
	t.Setenv("SALESFLOW_DB_DRIVER", "sqlite")
	t.Setenv("SALESFLOW_DB_PATH", filepath.Join(dir, "missing", "warehouse.db"))

	a, err := newApp(context.Background())
	require.Error(t, err)
	assert.Nil(t, a)
}
