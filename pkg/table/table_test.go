package table_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/JaimeStill/salesflow/pkg/table"
)

func rows(t *table.Table) [][]string {
	out := make([][]string, t.Len())
	for i := range out {
		out[i] = append([]string(nil), t.Row(i)...)
	}
	return out
}

func TestReadPadsAndTrimsHeader(t *testing.T) {
	input := "order_id , qty\nA,1\nB\nC,3,extra\n"
	tbl, err := table.Read(strings.NewReader(input), table.ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"order_id", "qty"}, tbl.Columns())
	want := [][]string{{"A", "1"}, {"B", ""}, {"C", "3"}}
	if diff := cmp.Diff(want, rows(tbl)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadEmptyInput(t *testing.T) {
	tbl, err := table.Read(strings.NewReader(""), table.ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, tbl.Columns())
	assert.Zero(t, tbl.Len())
}

func TestReadSkipsBOM(t *testing.T) {
	input := "\xEF\xBB\xBForder_id\nA\n"
	tbl, err := table.Read(strings.NewReader(input), table.ReadOptions{})
	require.NoError(t, err)
	assert.True(t, tbl.Has("order_id"))
}

func TestReadShiftJIS(t *testing.T) {
	encoded, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), "geo_id\n東京\n")
	require.NoError(t, err)

	tbl, err := table.Read(strings.NewReader(encoded), table.ReadOptions{Encoding: "Shift_JIS"})
	require.NoError(t, err)
	assert.Equal(t, "東京", tbl.Get(0, "geo_id"))
}

func TestReadUnknownEncoding(t *testing.T) {
	_, err := table.Read(strings.NewReader("a\n"), table.ReadOptions{Encoding: "latin-9"})
	require.ErrorIs(t, err, table.ErrUnknownEncoding)
	assert.False(t, table.ValidEncoding("latin-9"))
	assert.True(t, table.ValidEncoding("EUC-JP"))
}

func TestReadRejectsDuplicateColumns(t *testing.T) {
	_, err := table.Read(strings.NewReader("order_id,note,note,geo_id\nA,x,y,TKY\n"), table.ReadOptions{})
	require.ErrorIs(t, err, table.ErrDuplicateColumn)
	assert.Contains(t, err.Error(), `"note"`)

	_, err = table.Read(strings.NewReader("order_id, geo_id,geo_id \n"), table.ReadOptions{})
	assert.ErrorIs(t, err, table.ErrDuplicateColumn)
}

func TestWriteFileIsAtomicAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")

	tbl := table.New("order_id", "_bad_reason")
	tbl.Append("A", "bad_date,missing_geo")
	tbl.Append("B", "")
	require.NoError(t, table.WriteFile(path, tbl))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "order_id,_bad_reason\nA,\"bad_date,missing_geo\"\nB,\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")

	back, err := table.ReadFile(path, table.ReadOptions{})
	require.NoError(t, err)
	if diff := cmp.Diff(rows(tbl), rows(back)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDropDuplicatesKeepsFirst(t *testing.T) {
	tbl := table.New("id", "v")
	tbl.Append("A", "1")
	tbl.Append("B", "2")
	tbl.Append("A", "1")
	tbl.Append("A", "3")

	got := tbl.DropDuplicates()
	want := [][]string{{"A", "1"}, {"B", "2"}, {"A", "3"}}
	if diff := cmp.Diff(want, rows(got)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupeBy(t *testing.T) {
	tbl := table.New("id", "v")
	tbl.Append("A", "1")
	tbl.Append("B", "2")
	tbl.Append("A", "3")

	t.Run("first wins", func(t *testing.T) {
		got := tbl.DedupeBy([]string{"id"}, false)
		assert.Equal(t, [][]string{{"A", "1"}, {"B", "2"}}, rows(got))
	})

	t.Run("last wins at its own position", func(t *testing.T) {
		got := tbl.DedupeBy([]string{"id"}, true)
		assert.Equal(t, [][]string{{"B", "2"}, {"A", "3"}}, rows(got))
	})
}

func TestConcatUnionsColumns(t *testing.T) {
	a := table.New("id", "qty")
	a.Append("A", "1")
	b := table.New("qty", "id", "price")
	b.Append("2", "B", "9.5")

	got := table.Concat(a, b)
	assert.Equal(t, []string{"id", "qty", "price"}, got.Columns())
	assert.Equal(t, [][]string{{"A", "1", ""}, {"B", "2", "9.5"}}, rows(got))
}

func TestColumnOperations(t *testing.T) {
	tbl := table.New("Order_ID", "qty")
	tbl.Append("A", "1")

	name, ok := tbl.Lookup("order_id")
	require.True(t, ok)
	assert.Equal(t, "Order_ID", name)

	first, ok := tbl.LookupFirst("missing", "QTY")
	require.True(t, ok)
	assert.Equal(t, "qty", first)

	require.True(t, tbl.Rename("qty", "quantity"))
	assert.False(t, tbl.Rename("quantity", "Order_ID"))

	tbl.Set(0, "price", "100")
	assert.Equal(t, []string{"Order_ID", "quantity", "price"}, tbl.Columns())

	tbl.DropColumn("quantity")
	assert.Equal(t, []string{"A", "100"}, tbl.Row(0))

	sel := tbl.Select("price", "absent")
	assert.Equal(t, []string{"100", ""}, sel.Row(0))
}

func TestParseHelpers(t *testing.T) {
	tests := []struct {
		in      string
		wantF   float64
		okF     bool
		wantI   int64
		okI     bool
	}{
		{in: "3", wantF: 3, okF: true, wantI: 3, okI: true},
		{in: " 3.0 ", wantF: 3, okF: true, wantI: 3, okI: true},
		{in: "2.5", wantF: 2.5, okF: true, okI: false},
		{in: "-1", wantF: -1, okF: true, wantI: -1, okI: true},
		{in: "NaN", okF: false, okI: false},
		{in: "inf", okF: false, okI: false},
		{in: "", okF: false, okI: false},
		{in: "abc", okF: false, okI: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, ok := table.ParseFloat(tt.in)
			assert.Equal(t, tt.okF, ok)
			if ok {
				assert.Equal(t, tt.wantF, f)
			}

			n, ok := table.ParseInt(tt.in)
			assert.Equal(t, tt.okI, ok)
			if ok {
				assert.Equal(t, tt.wantI, n)
			}
		})
	}

	for in, want := range map[string]int64{"2.7": 2, "-1.9": -1, "0.5": 0, " 4 ": 4} {
		n, ok := table.TruncInt(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, n, in)
	}
	for _, in := range []string{"1e19", "-1e19", "NaN", "x"} {
		_, ok := table.TruncInt(in)
		assert.False(t, ok, in)
	}

	assert.Equal(t, "300", table.FormatFloat(300))
	assert.Equal(t, "0.1", table.FormatFloat(0.1))
}

func TestWriteEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf, table.New("a", "b")))
	assert.Equal(t, "a,b\n", buf.String())
}
