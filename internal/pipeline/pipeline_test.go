package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/salesflow/internal/audit"
	"github.com/JaimeStill/salesflow/internal/config"
	"github.com/JaimeStill/salesflow/internal/infrastructure"
	"github.com/JaimeStill/salesflow/internal/pipeline"
	"github.com/JaimeStill/salesflow/internal/silver"
	"github.com/JaimeStill/salesflow/pkg/table"
)

var (
	days = []string{"20261012", "20261013", "20261014", "20261015"}
	now  = time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
)

// writeRaw writes five accepted orders per day plus one rejected row on
// the first day.
func writeRaw(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	for i, day := range days {
		var b strings.Builder
		b.WriteString("order_id,order_date,geo_id,product_id,quantity,unit_price\n")
		for n := range 5 {
			fmt.Fprintf(&b, "O%d-%d,%s,GEO0%d,P00%d,%d,150\n", i, n, day, n+1, n+1, n+1)
		}
		if i == 0 {
			fmt.Fprintf(&b, "O%d-bad,%s,GEO01,P001,-1,150\n", i, day)
		}
		path := filepath.Join(dir, fmt.Sprintf("sales_%s.csv", day))
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	}
}

func schemaPath(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "schemas", name))
	require.NoError(t, err)
	return path
}

// setup runs in a fresh working directory with the shipped schemas, a
// SQLite warehouse, and local artifact storage.
func setup(t *testing.T) (*pipeline.Runtime, string) {
	t.Helper()
	silverSchema := schemaPath(t, "sales_silver.schema.json")
	goldSchema := schemaPath(t, "fact_sales_gold.schema.json")

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvPathsSilverSchema, silverSchema)
	t.Setenv(config.EnvPathsGoldSchema, goldSchema)
	t.Setenv("SALESFLOW_DB_ENABLED", "true")
	t.Setenv("SALESFLOW_DB_DRIVER", "sqlite")
	t.Setenv("SALESFLOW_DB_PATH", filepath.Join(dir, "warehouse.db"))
	t.Setenv("SALESFLOW_STORAGE_ENABLED", "true")

	writeRaw(t, filepath.Join(dir, "data", "raw"))

	cfg, err := config.Load("")
	require.NoError(t, err)

	return start(t, cfg), dir
}

func start(t *testing.T, cfg *config.Config) *pipeline.Runtime {
	t.Helper()
	infra, err := infrastructure.New(context.Background(), cfg, false)
	require.NoError(t, err)
	require.NoError(t, infra.Start())
	t.Cleanup(func() {
		assert.NoError(t, infra.Lifecycle.Shutdown(5*time.Second))
	})
	return pipeline.NewRuntime(cfg, infra)
}

func TestExecuteDefaultRun(t *testing.T) {
	rt, dir := setup(t)
	s := pipeline.NewState(now)

	require.NoError(t, pipeline.Execute(context.Background(), rt, pipeline.Default(), s))
	assert.False(t, s.Failed())

	require.NotNil(t, s.Silver)
	assert.Equal(t, 20, s.Silver.Good)
	assert.Equal(t, 1, s.Silver.Bad)
	assert.Equal(t, 1, s.Silver.Reasons[silver.ReasonNonPosQty])

	require.NotNil(t, s.SilverValidation)
	assert.True(t, s.SilverValidation.OK())
	assert.Equal(t, 4, s.SilverValidation.Files)
	assert.Equal(t, 20, s.SilverValidation.Rows)

	require.NotNil(t, s.Gold)
	assert.Equal(t, 20, s.Gold.Rows)
	assert.Equal(t, []string{"order_id"}, s.Gold.NaturalKey)

	require.NotNil(t, s.GoldValidation)
	assert.True(t, s.GoldValidation.OK())
	assert.Zero(t, s.GoldValidation.PKDuplicates)

	require.NotNil(t, s.Audit)
	assert.False(t, s.Audit.Failed())
	assert.FileExists(t, filepath.Join(dir, "reports", "quality_report.md"))

	dq, err := os.ReadFile(filepath.Join(dir, "reports", "dq_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(dq), "# "+pipeline.GoldReportTitle)
	assert.Contains(t, string(dq), "- **gold_rows**: 20")

	assert.True(t, s.TrendAdded)
	trend, err := table.ReadFile(filepath.Join(dir, "reports", "quarantine_trends.csv"), table.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, trend.Len())
	assert.Equal(t, "2026-10-15", trend.Get(0, "Date"))

	assert.Equal(t, int64(20), s.Loaded)

	require.Len(t, s.Published, 5)
	prefix := fmt.Sprintf("runs/20261015/%s/", s.RunID)
	for _, key := range s.Published {
		assert.True(t, strings.HasPrefix(key, prefix), key)
		assert.FileExists(t, filepath.Join(dir, "artifacts", filepath.FromSlash(key)))
	}

	n, err := testutil.GatherAndCount(rt.Metrics.Registry(), "salesflow_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, len(pipeline.Default()), n)
}

func TestExecuteRerunIsIdempotent(t *testing.T) {
	rt, dir := setup(t)
	factPath := filepath.Join(dir, "data", "gold", "fact_sales.csv")

	first := pipeline.NewState(now)
	require.NoError(t, pipeline.Execute(context.Background(), rt, pipeline.Default(), first))
	before, err := os.ReadFile(factPath)
	require.NoError(t, err)

	second := pipeline.NewState(now)
	require.NoError(t, pipeline.Execute(context.Background(), rt, pipeline.Default(), second))
	after, err := os.ReadFile(factPath)
	require.NoError(t, err)

	assert.Equal(t, 20, second.Gold.Rows)
	assert.Zero(t, second.Gold.Inserted)
	assert.False(t, second.TrendAdded)
	assert.NotEqual(t, first.RunID, second.RunID)

	trend, err := table.ReadFile(filepath.Join(dir, "reports", "quarantine_trends.csv"), table.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, trend.Len())

	// updated_at carries the source day, so a rerun rewrites identical rows.
	assert.Equal(t, string(before), string(after))
}

func TestExecuteSilverValidationHalts(t *testing.T) {
	rt, dir := setup(t)

	strict := filepath.Join(dir, "strict.schema.json")
	require.NoError(t, os.WriteFile(strict, []byte(`{
  "fields": {"order_id": {"dtype": "string"}, "channel": {"dtype": "string"}},
  "required": ["order_id", "channel"]
}`), 0o644))
	rt.Config.Paths.SilverSchema = strict

	s := pipeline.NewState(now)
	err := pipeline.Execute(context.Background(), rt, pipeline.Default(), s)
	require.Error(t, err)
	assert.True(t, pipeline.IsQuality(err))

	require.Len(t, s.Issues(), 1)
	assert.Equal(t, pipeline.StageValidateSilver, s.Issues()[0].Stage)
	assert.Len(t, s.SilverValidation.Errors, 4)
	assert.Nil(t, s.Gold)
	assert.NoFileExists(t, filepath.Join(dir, "data", "gold", "fact_sales.csv"))

	dq, err := os.ReadFile(filepath.Join(dir, "reports", "dq_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(dq), "# "+pipeline.SilverReportTitle)
	assert.Contains(t, string(dq), "- **silver_errors**: 4")
	assert.Contains(t, string(dq), "sales_clean_20261012.csv: Missing required column: channel")
}

func TestExecuteAuditFailureSkipsLoad(t *testing.T) {
	rt, dir := setup(t)
	rt.Config.Audit.MaxUnitPrice = 100

	s := pipeline.NewState(now)
	err := pipeline.Execute(context.Background(), rt, pipeline.Default(), s)
	require.Error(t, err)
	assert.True(t, pipeline.IsQuality(err))

	require.Len(t, s.Issues(), 1)
	assert.Equal(t, pipeline.StageAudit, s.Issues()[0].Stage)
	assert.Contains(t, s.Issues()[0].Details, audit.CheckNumericRanges)

	check, ok := s.Audit.Lookup(audit.CheckNumericRanges)
	require.True(t, ok)
	assert.Equal(t, audit.Fail, check.Status)

	assert.True(t, s.TrendAdded)
	assert.Zero(t, s.Loaded)
	assert.NotEmpty(t, s.Published)
	assert.FileExists(t, filepath.Join(dir, "reports", "quality_report.md"))
}

func TestExecuteNoInput(t *testing.T) {
	rt, dir := setup(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "data", "raw")))

	s := pipeline.NewState(now)
	err := pipeline.Execute(context.Background(), rt, pipeline.Default(), s)
	require.ErrorIs(t, err, silver.ErrNoInput)
	assert.False(t, pipeline.IsQuality(err))
	assert.Contains(t, err.Error(), pipeline.StageSilver+":")
}

func TestExecuteCanceled(t *testing.T) {
	rt, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pipeline.Execute(ctx, rt, pipeline.Default(), pipeline.NewState(now))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSinksDisabled(t *testing.T) {
	silverSchema := schemaPath(t, "sales_silver.schema.json")
	goldSchema := schemaPath(t, "fact_sales_gold.schema.json")

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvPathsSilverSchema, silverSchema)
	t.Setenv(config.EnvPathsGoldSchema, goldSchema)
	writeRaw(t, filepath.Join(dir, "data", "raw"))

	cfg, err := config.Load("")
	require.NoError(t, err)
	rt := start(t, cfg)

	s := pipeline.NewState(now)
	require.NoError(t, pipeline.Execute(context.Background(), rt, pipeline.Default(), s))
	assert.Zero(t, s.Loaded)
	assert.Empty(t, s.Published)
	assert.NoDirExists(t, filepath.Join(dir, "artifacts"))
}

func TestSingleStages(t *testing.T) {
	rt, _ := setup(t)
	ctx := context.Background()

	err := pipeline.Execute(ctx, rt, []pipeline.Stage{pipeline.ValidateGold}, pipeline.NewState(now))
	assert.ErrorIs(t, err, pipeline.ErrNoGold)

	s := pipeline.NewState(now)
	require.NoError(t, pipeline.Execute(ctx, rt, []pipeline.Stage{pipeline.Silver, pipeline.Gold}, s))
	assert.Nil(t, s.Audit)

	s = pipeline.NewState(now)
	require.NoError(t, pipeline.Execute(ctx, rt, []pipeline.Stage{pipeline.Audit}, s))
	assert.Equal(t, []string{"order_id"}, s.Audit.NaturalKey)
}
