package gold_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/pkg/table"
)

const cleanHeader = "order_id,order_date,geo_id,product_id,quantity,unit_price,revenue_jpy,processed_at"

func setup(t *testing.T) gold.Dirs {
	t.Helper()
	root := t.TempDir()
	d := gold.Dirs{
		Silver: filepath.Join(root, "silver"),
		Gold:   filepath.Join(root, "gold"),
	}
	require.NoError(t, os.MkdirAll(d.Silver, 0o755))
	return d
}

func writeSilver(t *testing.T, dir, day, header string, lines ...string) {
	t.Helper()
	content := strings.Join(append([]string{header}, lines...), "\n") + "\n"
	path := filepath.Join(dir, "sales_clean_"+day+".csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newMerger(t *testing.T, d gold.Dirs, cfg gold.Config) *gold.Merger {
	t.Helper()
	if cfg.DimStart == "" {
		cfg.DimStart = "2025-01-01"
		cfg.DimEnd = "2025-01-31"
	}
	require.NoError(t, cfg.Finalize(nil))
	return gold.New(&cfg, d, zap.NewNop())
}

func readFact(t *testing.T, m *gold.Merger) *table.Table {
	t.Helper()
	tbl, err := table.ReadFile(m.FactPath(), table.ReadOptions{})
	require.NoError(t, err)
	return tbl
}

func rows(t *table.Table) [][]string {
	out := make([][]string, t.Len())
	for i := range t.Len() {
		out[i] = t.Row(i)
	}
	return out
}

func TestMergeWritesFactLayout(t *testing.T) {
	d := setup(t)
	writeSilver(t, d.Silver, "20250102", cleanHeader,
		"B1,20250102,G2,P2,3,50.5,151.5,20250102",
	)
	writeSilver(t, d.Silver, "20250101", cleanHeader,
		"A1,20250101,G1,P1,2,100,200,20250101",
	)

	m := newMerger(t, d, gold.Config{})
	res, err := m.Merge(context.Background())
	require.NoError(t, err)

	fact := readFact(t, m)
	assert.Equal(t, gold.FactColumns, fact.Columns())
	want := [][]string{
		{"A1", "20250101", "G1", "P1", "2", "100", "200", "20250101"},
		{"B1", "20250102", "G2", "P2", "3", "50.5", "151.5", "20250102"},
	}
	if diff := cmp.Diff(want, rows(fact)); diff != "" {
		t.Errorf("fact rows mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, res.Files, 2)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, []string{"order_id"}, res.NaturalKey)
	assert.Equal(t, "date_id", res.SortColumn)
	assert.True(t, res.DimCreated)
}

func TestMergeIsIdempotent(t *testing.T) {
	d := setup(t)
	writeSilver(t, d.Silver, "20250101", cleanHeader,
		"A1,20250101,G1,P1,2,100,200,20250101",
		"A2,20250101,G1,P3,1,75.25,75.25,20250101",
	)
	writeSilver(t, d.Silver, "20250102", cleanHeader,
		"B1,20250102,G2,P2,3,50.5,151.5,20250102",
		"A2,20250101,G1,P3,4,75.25,301,20250102",
	)

	m := newMerger(t, d, gold.Config{})
	_, err := m.Merge(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(m.FactPath())
	require.NoError(t, err)

	res, err := m.Merge(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(m.FactPath())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 3, res.Updated)
	assert.False(t, res.DimCreated)
}

func TestMergeNewRowsWin(t *testing.T) {
	d := setup(t)
	writeSilver(t, d.Silver, "20250101", cleanHeader,
		"K1,20250101,G1,P1,1,100,100,20250101",
	)

	m := newMerger(t, d, gold.Config{})
	_, err := m.Merge(context.Background())
	require.NoError(t, err)

	writeSilver(t, d.Silver, "20250101", cleanHeader,
		"K1,20250101,G1,P1,1,200,200,20250102",
	)
	res, err := m.Merge(context.Background())
	require.NoError(t, err)

	fact := readFact(t, m)
	require.Equal(t, 1, fact.Len())
	assert.Equal(t, "200", fact.Get(0, "unit_price"))
	assert.Equal(t, "200", fact.Get(0, "revenue_jpy"))
	assert.Equal(t, "20250102", fact.Get(0, "updated_at"))
	assert.Equal(t, 1, res.Updated)
}

func TestMergeKeyIsUnique(t *testing.T) {
	d := setup(t)
	writeSilver(t, d.Silver, "20250101", cleanHeader,
		"A1,20250101,G1,P1,1,10,10,20250101",
		"A2,20250101,G1,P1,1,10,10,20250101",
	)
	writeSilver(t, d.Silver, "20250102", cleanHeader,
		"A1,20250101,G1,P1,5,10,50,20250102",
		"A3,20250102,G1,P1,1,10,10,20250102",
	)

	m := newMerger(t, d, gold.Config{})
	_, err := m.Merge(context.Background())
	require.NoError(t, err)

	fact := readFact(t, m)
	ids := fact.Column("order_id")
	assert.ElementsMatch(t, []string{"A1", "A2", "A3"}, ids)
	for i := range fact.Len() {
		if fact.Get(i, "order_id") == "A1" {
			assert.Equal(t, "5", fact.Get(i, "quantity"))
		}
	}
}

func TestMergeNoInput(t *testing.T) {
	d := setup(t)
	m := newMerger(t, d, gold.Config{})
	_, err := m.Merge(context.Background())
	assert.ErrorIs(t, err, gold.ErrNoInput)

	_, statErr := os.Stat(m.FactPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestMergeUnresolvableKeyWritesNothing(t *testing.T) {
	d := setup(t)
	writeSilver(t, d.Silver, "20250101", "sku,quantity,unit_price",
		"S1,1,10",
	)

	m := newMerger(t, d, gold.Config{AutoKey: true})
	_, err := m.Merge(context.Background())
	assert.ErrorIs(t, err, gold.ErrKeyUnresolvable)

	_, statErr := os.Stat(m.FactPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestMergeDimensionFailureKeepsFactTable(t *testing.T) {
	d := setup(t)
	writeSilver(t, d.Silver, "20250101", cleanHeader,
		"A1,20250101,G1,P1,2,100,200,20250101",
	)

	m := newMerger(t, d, gold.Config{})
	_, err := m.Merge(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(m.FactPath())
	require.NoError(t, err)

	require.NoError(t, os.Remove(m.DimPath()))
	require.NoError(t, os.Symlink(gold.DimFile, m.DimPath()))
	writeSilver(t, d.Silver, "20250102", cleanHeader,
		"B1,20250102,G2,P2,3,50,150,20250102",
	)

	_, err = m.Merge(context.Background())
	require.Error(t, err)

	after, err := os.ReadFile(m.FactPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestMergeAutoKeyUsesCompositeCandidate(t *testing.T) {
	d := setup(t)
	writeSilver(t, d.Silver, "20250101", "Order_Date,Geo_ID,Product_ID,Qty,Price",
		"20250101,G1,P1,2,10",
		"20250101,G1,P1,3,10",
		"20250101,G2,P1,1,10",
	)

	m := newMerger(t, d, gold.Config{AutoKey: true})
	res, err := m.Merge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"date_id", "geo_id", "product_id"}, res.NaturalKey)
	fact := readFact(t, m)
	require.Equal(t, 2, fact.Len())
	assert.Equal(t, "3", fact.Get(0, "quantity"))
	assert.Equal(t, "30", fact.Get(0, "revenue_jpy"))
}

func TestProjectDerivesRevenue(t *testing.T) {
	batch := table.New("order_id", "order_date", "qty", "price")
	batch.Append("A1", "20250101", "3.9", "2.5")
	batch.Append("A2", "bogus", "x", "4")

	got, err := gold.Project(batch)
	require.NoError(t, err)

	assert.Equal(t, []string{"order_id", "date_id", "quantity", "unit_price", "revenue_jpy"}, got.Columns())
	want := [][]string{
		{"A1", "20250101", "3", "2.5", "7.5"},
		{"A2", "", "0", "4", "0"},
	}
	if diff := cmp.Diff(want, rows(got)); diff != "" {
		t.Errorf("projected rows mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectOutOfRangeQuantityBecomesZero(t *testing.T) {
	batch := table.New("order_id", "order_date", "quantity", "unit_price")
	batch.Append("A1", "20250101", "1e19", "100")
	batch.Append("A2", "20250101", "-1e19", "100")

	got, err := gold.Project(batch)
	require.NoError(t, err)

	for i := range got.Len() {
		assert.Equal(t, "0", got.Get(i, "quantity"))
		assert.Equal(t, "0", got.Get(i, "revenue_jpy"))
	}
}

func TestProjectKeepsExistingRevenue(t *testing.T) {
	batch := table.New("order_id", "Amount", "extra")
	batch.Append("A1", "12.50", "x")

	got, err := gold.Project(batch)
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "revenue_jpy", "extra"}, got.Columns())
	assert.Equal(t, "12.5", got.Get(0, "revenue_jpy"))
}

func TestProjectRevenueUnresolvable(t *testing.T) {
	batch := table.New("order_id", "quantity")
	batch.Append("A1", "1")

	_, err := gold.Project(batch)
	assert.ErrorIs(t, err, gold.ErrRevenueUnresolvable)
}

func TestResolveKey(t *testing.T) {
	tbl := table.New("ORDER_ID", "date_id", "geo_id", "product_id")

	key, err := gold.ResolveKey(tbl, []string{"order_id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORDER_ID"}, key)

	key, err = gold.ResolveKey(tbl, []string{"date_id", "geo_id", "product_id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"date_id", "geo_id", "product_id"}, key)

	_, err = gold.ResolveKey(tbl, []string{"store_id"})
	assert.ErrorIs(t, err, gold.ErrKeyUnresolvable)

	assert.Len(t, gold.MatchingCandidates(tbl), 2)
}

func TestUpsertKeepsLastOccurrencePosition(t *testing.T) {
	old := table.New("order_id", "v")
	old.Append("A", "1")
	old.Append("B", "1")
	incoming := table.New("order_id", "v")
	incoming.Append("A", "2")

	got := gold.Upsert(old, incoming, []string{"order_id"})
	assert.Equal(t, [][]string{{"B", "1"}, {"A", "2"}}, rows(got))
}

func TestSortByDateNumeric(t *testing.T) {
	tbl := table.New("date_id", "v")
	tbl.Append("100", "a")
	tbl.Append("20", "b")
	tbl.Append("20", "c")
	tbl.Append("", "d")

	col := gold.SortByDate(tbl)
	assert.Equal(t, "date_id", col)
	assert.Equal(t, []string{"", "20", "20", "100"}, tbl.Column("date_id"))
	assert.Equal(t, []string{"d", "b", "c", "a"}, tbl.Column("v"))

	assert.Equal(t, "", gold.SortByDate(table.New("x")))
}

func TestBuildDimDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), gold.DimFile)
	start := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	created, err := gold.BuildDimDate(path, start, end)
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "date_id,date\n20241230,2024-12-30\n20241231,2024-12-31\n20250101,2025-01-01\n20250102,2025-01-02\n"
	assert.Equal(t, want, string(data))

	created, err = gold.BuildDimDate(path, start, end.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.False(t, created)
}

func TestConfigFinalize(t *testing.T) {
	cfg := gold.Config{}
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, []string{"order_id"}, cfg.NaturalKey)
	assert.Equal(t, "2024-01-01", cfg.DimStart)

	t.Setenv("TEST_GOLD_KEY", "date_id, geo_id ,product_id")
	cfg = gold.Config{}
	require.NoError(t, cfg.Finalize(&gold.Env{NaturalKey: "TEST_GOLD_KEY"}))
	assert.Equal(t, []string{"date_id", "geo_id", "product_id"}, cfg.NaturalKey)

	auto := gold.Config{AutoKey: true}
	require.NoError(t, auto.Finalize(nil))
	assert.Empty(t, auto.NaturalKey)

	both := gold.Config{AutoKey: true, NaturalKey: []string{"order_id"}}
	assert.Error(t, both.Finalize(nil))

	inverted := gold.Config{DimStart: "2025-01-02", DimEnd: "2025-01-01"}
	assert.Error(t, inverted.Finalize(nil))
}

func TestConfigMergeSwitchesKeyMode(t *testing.T) {
	base := gold.Config{NaturalKey: []string{"order_id"}}
	base.Merge(&gold.Config{AutoKey: true})
	require.NoError(t, base.Finalize(nil))
	assert.True(t, base.AutoKey)
	assert.Empty(t, base.NaturalKey)

	auto := gold.Config{AutoKey: true}
	auto.Merge(&gold.Config{NaturalKey: []string{"date_id", "geo_id", "product_id"}})
	require.NoError(t, auto.Finalize(nil))
	assert.False(t, auto.AutoKey)
	assert.Equal(t, []string{"date_id", "geo_id", "product_id"}, auto.NaturalKey)

	t.Setenv("TEST_GOLD_AUTO_KEY", "true")
	fromEnv := gold.Config{NaturalKey: []string{"order_id"}}
	require.NoError(t, fromEnv.Finalize(&gold.Env{AutoKey: "TEST_GOLD_AUTO_KEY"}))
	assert.True(t, fromEnv.AutoKey)
	assert.Empty(t, fromEnv.NaturalKey)
}
