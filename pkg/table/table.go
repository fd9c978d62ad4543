// Package table provides an in-memory, string-typed tabular structure used by
// every pipeline stage, along with CSV encoding for it.
//
// Cells are stored as strings exactly as read. The empty string is the null
// value: CSV cannot distinguish an empty field from a missing one, so neither
// does Table.
package table

import (
	"slices"
	"strings"
)

// Table is an ordered set of named columns and rows of string cells.
// Every row holds exactly one cell per column.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New creates an empty table with the given columns.
// Duplicate column names keep their first position.
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Has reports whether the table has a column with exactly this name.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Index returns the position of a column, or -1 when absent.
func (t *Table) Index(column string) int {
	if i, ok := t.index[column]; ok {
		return i
	}
	return -1
}

// Lookup resolves a column name case-insensitively and returns the
// table's spelling of it.
func (t *Table) Lookup(name string) (string, bool) {
	if _, ok := t.index[name]; ok {
		return name, true
	}
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// LookupFirst returns the first candidate present in the table,
// matched case-insensitively.
func (t *Table) LookupFirst(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if name, ok := t.Lookup(c); ok {
			return name, true
		}
	}
	return "", false
}

// Row returns the cells of row i. The slice is shared with the table.
func (t *Table) Row(i int) []string {
	return t.rows[i]
}

// Get returns the cell at row i of the named column, or "" when the
// column is absent.
func (t *Table) Get(i int, column string) string {
	idx, ok := t.index[column]
	if !ok {
		return ""
	}
	return t.rows[i][idx]
}

// Set writes a cell. Setting an absent column adds it first.
func (t *Table) Set(i int, column, value string) {
	idx, ok := t.index[column]
	if !ok {
		t.AddColumn(column)
		idx = t.index[column]
	}
	t.rows[i][idx] = value
}

// Column returns a copy of every value of the named column.
// An absent column yields a slice of nulls.
func (t *Table) Column(column string) []string {
	out := make([]string, len(t.rows))
	idx, ok := t.index[column]
	if !ok {
		return out
	}
	for i, r := range t.rows {
		out[i] = r[idx]
	}
	return out
}

// Append adds a row. Missing trailing values are null and extra values
// are dropped.
func (t *Table) Append(values ...string) {
	row := make([]string, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// AppendRecord adds a row from a column-to-value map. Keys that are not
// columns of the table are ignored.
func (t *Table) AppendRecord(record map[string]string) {
	row := make([]string, len(t.columns))
	for c, v := range record {
		if idx, ok := t.index[c]; ok {
			row[idx] = v
		}
	}
	t.rows = append(t.rows, row)
}

// AddColumn appends a null-filled column. It is a no-op when the column exists.
func (t *Table) AddColumn(column string) {
	if t.addColumn(column) {
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], "")
		}
	}
}

// DropColumn removes a column. It is a no-op when the column is absent.
func (t *Table) DropColumn(column string) {
	idx, ok := t.index[column]
	if !ok {
		return
	}
	t.columns = slices.Delete(t.columns, idx, idx+1)
	for i := range t.rows {
		t.rows[i] = slices.Delete(t.rows[i], idx, idx+1)
	}
	t.reindex()
}

// Rename changes a column name. Renaming onto an existing column is refused.
func (t *Table) Rename(from, to string) bool {
	idx, ok := t.index[from]
	if !ok || t.Has(to) {
		return false
	}
	t.columns[idx] = to
	t.reindex()
	return true
}

// Select returns a new table holding the given columns in the given order.
// Absent columns are null-filled.
func (t *Table) Select(columns ...string) *Table {
	out := New(columns...)
	out.rows = make([][]string, len(t.rows))
	for i, r := range t.rows {
		row := make([]string, len(out.columns))
		for j, c := range out.columns {
			if idx, ok := t.index[c]; ok {
				row[j] = r[idx]
			}
		}
		out.rows[i] = row
	}
	return out
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := New(t.columns...)
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, slices.Clone(r))
		}
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return t.Filter(func(int) bool { return true })
}

// DropDuplicates removes rows identical in every column, keeping the first.
func (t *Table) DropDuplicates() *Table {
	return t.dedupe(func(r []string) string { return joinKey(r) }, false)
}

// DedupeBy removes rows sharing the same values in the given columns.
// With keepLast the last occurrence survives, at its own position;
// otherwise the first does.
func (t *Table) DedupeBy(columns []string, keepLast bool) *Table {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.Index(c)
	}
	return t.dedupe(func(r []string) string {
		return joinKey(pick(r, idx))
	}, keepLast)
}

// SortStable orders rows with a stable sort on less, which receives two rows.
func (t *Table) SortStable(less func(a, b []string) int) {
	slices.SortStableFunc(t.rows, less)
}

// Concat unions tables by column name. The result's columns are ordered
// by first appearance; cells missing from a source table are null.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		for _, c := range t.columns {
			out.addColumn(c)
		}
	}
	for _, t := range tables {
		for _, r := range t.rows {
			row := make([]string, len(out.columns))
			for j, c := range t.columns {
				row[out.index[c]] = r[j]
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// KeySeparator joins composite key parts. It is the ASCII unit separator,
// which does not occur in CSV business data.
const KeySeparator = "\x1f"

// Key builds a composite key from the given column positions of a row.
// A negative position contributes an empty part.
func Key(row []string, idx []int) string {
	return joinKey(pick(row, idx))
}

func (t *Table) dedupe(key func([]string) string, keepLast bool) *Table {
	out := New(t.columns...)
	if keepLast {
		last := make(map[string]int, len(t.rows))
		for i, r := range t.rows {
			last[key(r)] = i
		}
		for i, r := range t.rows {
			if last[key(r)] == i {
				out.rows = append(out.rows, slices.Clone(r))
			}
		}
		return out
	}

	seen := make(map[string]struct{}, len(t.rows))
	for _, r := range t.rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.rows = append(out.rows, slices.Clone(r))
	}
	return out
}

func (t *Table) addColumn(column string) bool {
	if _, ok := t.index[column]; ok {
		return false
	}
	t.index[column] = len(t.columns)
	t.columns = append(t.columns, column)
	return true
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.index[c] = i
	}
}

func pick(row []string, idx []int) []string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		if j >= 0 {
			parts[i] = row[j]
		}
	}
	return parts
}

func joinKey(parts []string) string {
	return strings.Join(parts, KeySeparator)
}
