package gold

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/JaimeStill/salesflow/pkg/table"
)

// Fact table columns in file order.
const (
	ColOrderID   = "order_id"
	ColDateID    = "date_id"
	ColGeoID     = "geo_id"
	ColProductID = "product_id"
	ColQuantity  = "quantity"
	ColUnitPrice = "unit_price"
	ColRevenue   = "revenue_jpy"
	ColUpdatedAt = "updated_at"

	colOrderDate   = "order_date"
	colProcessedAt = "processed_at"
)

// FactColumns is the column layout of fact_sales.csv.
var FactColumns = []string{ColOrderID, ColDateID, ColGeoID, ColProductID, ColQuantity, ColUnitPrice, ColRevenue, ColUpdatedAt}

var (
	revenueCandidates  = []string{"revenue_jpy", "revenue", "amount", "sales_amount"}
	quantityCandidates = []string{"quantity", "qty", "units"}
	priceCandidates    = []string{"unit_price", "price", "unit_cost"}

	// KeyCandidates are tried in order when no natural key is configured.
	KeyCandidates = [][]string{
		{"order_id"},
		{"order_date", "geo_id", "product_id"},
		{"date_id", "geo_id", "product_id"},
		{"date", "store_id", "product_id"},
	}

	sortCandidates = []string{"date", "order_date", "date_id", "updated_at", "processed_at"}
)

// Project maps a silver batch onto the fact layout: order_date becomes an
// integer date_id, processed_at becomes updated_at, quantity, price and
// revenue columns get canonical names, and revenue is derived when absent.
// Fact columns come first in fact order; any other columns follow.
func Project(batch *table.Table) (*table.Table, error) {
	t := batch.Clone()
	for _, c := range append(slices.Clone(FactColumns), colOrderDate, colProcessedAt) {
		canonicalize(t, c, []string{c})
	}

	if src, ok := t.Lookup(colOrderDate); ok && !t.Has(ColDateID) {
		t.AddColumn(ColDateID)
		for i := range t.Len() {
			t.Set(i, ColDateID, normalizeInt(t.Get(i, src), ""))
		}
		t.DropColumn(src)
	}
	if src, ok := t.Lookup(colProcessedAt); ok && !t.Has(ColUpdatedAt) {
		t.Rename(src, ColUpdatedAt)
	}

	canonicalize(t, ColQuantity, quantityCandidates)
	canonicalize(t, ColUnitPrice, priceCandidates)

	if !canonicalize(t, ColRevenue, revenueCandidates) {
		if !t.Has(ColQuantity) || !t.Has(ColUnitPrice) {
			return nil, fmt.Errorf("%w: columns %v", ErrRevenueUnresolvable, t.Columns())
		}
		t.AddColumn(ColRevenue)
		for i := range t.Len() {
			q, _ := table.TruncInt(t.Get(i, ColQuantity))
			p, _ := table.ParseFloat(t.Get(i, ColUnitPrice))
			t.Set(i, ColRevenue, table.FormatFloat(float64(q)*p))
		}
	}

	Normalize(t)

	order := make([]string, 0, len(t.Columns()))
	for _, c := range FactColumns {
		if t.Has(c) {
			order = append(order, c)
		}
	}
	for _, c := range t.Columns() {
		if !slices.Contains(order, c) {
			order = append(order, c)
		}
	}
	return t.Select(order...), nil
}

// Normalize rewrites quantity as an integer and unit_price and revenue_jpy
// as floats in canonical form. Unparseable values become zero. Absent
// columns are left alone.
func Normalize(t *table.Table) {
	for i := range t.Len() {
		if t.Has(ColQuantity) {
			q, _ := table.TruncInt(t.Get(i, ColQuantity))
			t.Set(i, ColQuantity, table.FormatInt(q))
		}
		for _, c := range []string{ColUnitPrice, ColRevenue} {
			if t.Has(c) {
				f, _ := table.ParseFloat(t.Get(i, c))
				t.Set(i, c, table.FormatFloat(f))
			}
		}
		if t.Has(ColDateID) {
			t.Set(i, ColDateID, normalizeInt(t.Get(i, ColDateID), ""))
		}
	}
}

// ResolveKey returns the natural key columns as spelled in t. A configured
// key must match completely; otherwise the first fully present candidate
// wins.
func ResolveKey(t *table.Table, configured []string) ([]string, error) {
	if len(configured) > 0 {
		key, ok := lookupAll(t, configured)
		if !ok {
			return nil, fmt.Errorf("%w: configured %v, columns %v", ErrKeyUnresolvable, configured, t.Columns())
		}
		return key, nil
	}

	for _, cand := range KeyCandidates {
		if key, ok := lookupAll(t, cand); ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: columns %v", ErrKeyUnresolvable, t.Columns())
}

// MatchingCandidates lists every key candidate fully present in t.
func MatchingCandidates(t *table.Table) [][]string {
	var out [][]string
	for _, cand := range KeyCandidates {
		if key, ok := lookupAll(t, cand); ok {
			out = append(out, key)
		}
	}
	return out
}

// Upsert concatenates existing and incoming rows and keeps, for every
// natural key, only the last occurrence at its own position. Incoming rows
// therefore replace existing ones.
func Upsert(existing, incoming *table.Table, key []string) *table.Table {
	return table.Concat(existing, incoming).DedupeBy(key, true)
}

// SortByDate stable-sorts rows by the first present date-like column.
// Values compare numerically when both are integers, as text otherwise.
// It returns the column used, or "" when none exists.
func SortByDate(t *table.Table) string {
	col, ok := t.LookupFirst(sortCandidates...)
	if !ok {
		return ""
	}
	idx := t.Index(col)
	t.SortStable(func(a, b []string) int {
		return compareValues(a[idx], b[idx])
	})
	return col
}

func compareValues(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// canonicalize renames the first matching candidate to name. It reports
// whether name exists afterwards.
func canonicalize(t *table.Table, name string, candidates []string) bool {
	if t.Has(name) {
		return true
	}
	src, ok := t.LookupFirst(candidates...)
	if !ok {
		return false
	}
	return t.Rename(src, name)
}

func lookupAll(t *table.Table, names []string) ([]string, bool) {
	out := make([]string, len(names))
	for i, n := range names {
		col, ok := t.Lookup(n)
		if !ok {
			return nil, false
		}
		out[i] = col
	}
	return out, true
}

func normalizeInt(v, fallback string) string {
	n, ok := table.ParseInt(v)
	if !ok {
		return fallback
	}
	return table.FormatInt(n)
}
