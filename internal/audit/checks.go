package audit

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/pkg/formatting"
	"github.com/JaimeStill/salesflow/pkg/table"
)

// Check names in report order.
const (
	CheckRequiredColumns   = "Required Columns"
	CheckPrimaryKey        = "Primary Key Uniqueness"
	CheckKeyNotNull        = "Key Columns Not Null"
	CheckNumericRanges     = "Numeric Ranges"
	CheckDateRange         = "Date Range"
	CheckReferential       = "Referential Integrity"
	CheckVolumeAnomaly     = "Daily Volume Anomaly"
	CheckRevenueSpike      = "Revenue Spike"
	CheckNonNegative       = "Non-negative Totals"
	CheckRevenueConsistent = "Revenue Consistency"
)

// RequiredColumns must all be present in the fact table.
var RequiredColumns = []string{
	gold.ColOrderID, gold.ColDateID, gold.ColGeoID, gold.ColProductID,
	gold.ColQuantity, gold.ColUnitPrice, gold.ColRevenue,
}

const (
	dateIDLayout    = "20060102"
	maxListedValues = 5
)

func pass(name, details string) Check { return Check{Name: name, Status: Pass, Details: details} }
func warn(name, details string) Check { return Check{Name: name, Status: Warn, Details: details} }
func fail(name, details string) Check { return Check{Name: name, Status: Fail, Details: details} }

func checkRequiredColumns(fact *table.Table) Check {
	var missing []string
	for _, c := range RequiredColumns {
		if !fact.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fail(CheckRequiredColumns, "missing: "+strings.Join(missing, ", "))
	}
	return pass(CheckRequiredColumns, fmt.Sprintf("%d columns present", len(RequiredColumns)))
}

func checkPrimaryKey(fact *table.Table, key []string, keyErr error) Check {
	if keyErr != nil {
		return fail(CheckPrimaryKey, keyErr.Error())
	}
	idx := make([]int, len(key))
	for i, c := range key {
		idx[i] = fact.Index(c)
	}
	seen := make(map[string]struct{}, fact.Len())
	dups := 0
	for i := range fact.Len() {
		k := table.Key(fact.Row(i), idx)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	label := strings.Join(key, "+")
	if dups > 0 {
		return fail(CheckPrimaryKey, fmt.Sprintf("%d duplicate rows on %s", dups, label))
	}
	return pass(CheckPrimaryKey, fmt.Sprintf("unique on %s", label))
}

func checkKeyNotNull(fact *table.Table, key []string, keyErr error) Check {
	if keyErr != nil {
		return fail(CheckKeyNotNull, keyErr.Error())
	}
	var nulls []string
	for _, c := range key {
		n := 0
		for _, v := range fact.Column(c) {
			if table.IsNull(strings.TrimSpace(v)) {
				n++
			}
		}
		if n > 0 {
			nulls = append(nulls, fmt.Sprintf("%s (%d)", c, n))
		}
	}
	if len(nulls) > 0 {
		return fail(CheckKeyNotNull, "nulls in "+strings.Join(nulls, ", "))
	}
	return pass(CheckKeyNotNull, "no nulls in "+strings.Join(key, ", "))
}

func checkNumericRanges(fact *table.Table, maxPrice float64) Check {
	if missing := absent(fact, gold.ColQuantity, gold.ColUnitPrice, gold.ColRevenue); len(missing) > 0 {
		return fail(CheckNumericRanges, "missing: "+strings.Join(missing, ", "))
	}
	var qty, price, rev int
	for i := range fact.Len() {
		if q, ok := table.ParseFloat(fact.Get(i, gold.ColQuantity)); !ok || q <= 0 {
			qty++
		}
		if p, ok := table.ParseFloat(fact.Get(i, gold.ColUnitPrice)); !ok || p <= 0 || p > maxPrice {
			price++
		}
		if r, ok := table.ParseFloat(fact.Get(i, gold.ColRevenue)); !ok || r < 0 {
			rev++
		}
	}
	if qty+price+rev > 0 {
		return fail(CheckNumericRanges, fmt.Sprintf("quantity<=0: %d, unit_price outside (0, %s]: %d, revenue_jpy<0: %d",
			qty, table.FormatFloat(maxPrice), price, rev))
	}
	return pass(CheckNumericRanges, "all values in range")
}

func checkDateRange(fact *table.Table, now time.Time, lookback int, loc *time.Location) Check {
	if !fact.Has(gold.ColDateID) {
		return fail(CheckDateRange, "missing: "+gold.ColDateID)
	}
	today := calendarDay(now.In(loc))
	earliest := today.AddDate(0, 0, -lookback)

	var bad, outside int
	for _, v := range fact.Column(gold.ColDateID) {
		d, ok := parseDateID(v)
		if !ok {
			bad++
			continue
		}
		if d.Before(earliest) || d.After(today) {
			outside++
		}
	}
	window := fmt.Sprintf("[%s, %s]", earliest.Format(time.DateOnly), today.Format(time.DateOnly))
	if bad+outside > 0 {
		return fail(CheckDateRange, fmt.Sprintf("%d unparseable, %d outside %s", bad, outside, window))
	}
	return pass(CheckDateRange, "all dates within "+window)
}

func checkReferential(fact, dim *table.Table) Check {
	if !fact.Has(gold.ColDateID) {
		return fail(CheckReferential, "missing: "+gold.ColDateID)
	}
	if dim == nil || !dim.Has(gold.DimColDateID) {
		return fail(CheckReferential, "date dimension unavailable")
	}

	known := make(map[string]struct{}, dim.Len())
	for _, v := range dim.Column(gold.DimColDateID) {
		known[canonicalID(v)] = struct{}{}
	}

	var orphans []string
	seen := make(map[string]struct{})
	for _, v := range fact.Column(gold.ColDateID) {
		id := canonicalID(v)
		if _, ok := known[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		orphans = append(orphans, id)
	}
	if len(orphans) > 0 {
		slices.Sort(orphans)
		return fail(CheckReferential, "date_id not in dimension: "+formatting.Truncate(orphans, maxListedValues))
	}
	return pass(CheckReferential, "all date_id values resolve")
}

func checkVolume(s series, cfg *Config) Check {
	if len(s.days) < cfg.MinHistoryDays {
		return warn(CheckVolumeAnomaly, insufficient(len(s.days), cfg.MinHistoryDays))
	}
	latest, med := s.latest(s.counts, cfg.WindowDays)
	dev := deviation(latest, med)
	c := pass(CheckVolumeAnomaly, "")
	if dev > cfg.VolumeThreshold {
		c = fail(CheckVolumeAnomaly, "")
	}
	c.Value = dev
	c.Details = fmt.Sprintf("%d: %s rows, median %s, deviation %.2f (threshold %.2f)",
		s.days[len(s.days)-1], table.FormatFloat(latest), table.FormatFloat(med), dev, cfg.VolumeThreshold)
	return c
}

func checkSpike(s series, cfg *Config) Check {
	if len(s.days) < cfg.MinHistoryDays {
		return warn(CheckRevenueSpike, insufficient(len(s.days), cfg.MinHistoryDays))
	}
	latest, med := s.latest(s.revenue, cfg.WindowDays)
	ratio := spikeRatio(latest, med)
	c := pass(CheckRevenueSpike, "")
	if ratio > cfg.SpikeRatio {
		c = fail(CheckRevenueSpike, "")
	}
	c.Value = ratio
	c.Details = fmt.Sprintf("%d: revenue %s, median %s, ratio %.2f (limit %.2f)",
		s.days[len(s.days)-1], table.FormatFloat(latest), table.FormatFloat(med), ratio, cfg.SpikeRatio)
	return c
}

func checkNonNegative(fact *table.Table) Check {
	if missing := absent(fact, gold.ColQuantity, gold.ColRevenue); len(missing) > 0 {
		return fail(CheckNonNegative, "missing: "+strings.Join(missing, ", "))
	}
	qty := sum(fact.Column(gold.ColQuantity))
	rev := sum(fact.Column(gold.ColRevenue))
	details := fmt.Sprintf("quantity %s, revenue_jpy %s", table.FormatFloat(qty), table.FormatFloat(rev))
	if qty < 0 || rev < 0 {
		return fail(CheckNonNegative, details)
	}
	return pass(CheckNonNegative, details)
}

func checkRevenueConsistency(fact *table.Table, tolerance float64) Check {
	if missing := absent(fact, gold.ColQuantity, gold.ColUnitPrice, gold.ColRevenue); len(missing) > 0 {
		return fail(CheckRevenueConsistent, "missing: "+strings.Join(missing, ", "))
	}
	bad := 0
	for i := range fact.Len() {
		q, okQ := table.ParseFloat(fact.Get(i, gold.ColQuantity))
		p, okP := table.ParseFloat(fact.Get(i, gold.ColUnitPrice))
		r, okR := table.ParseFloat(fact.Get(i, gold.ColRevenue))
		if !okQ || !okP || !okR || math.Abs(r-q*p) > tolerance {
			bad++
		}
	}
	if bad > 0 {
		return fail(CheckRevenueConsistent, fmt.Sprintf("%d rows differ from quantity x unit_price by more than %s", bad, table.FormatFloat(tolerance)))
	}
	return pass(CheckRevenueConsistent, "within "+table.FormatFloat(tolerance))
}

// series holds per-day row counts and revenue sums in ascending day order.
type series struct {
	days    []int64
	counts  []float64
	revenue []float64
}

func dailySeries(fact *table.Table) series {
	counts := make(map[int64]float64)
	revenue := make(map[int64]float64)
	for i := range fact.Len() {
		id, ok := table.ParseInt(fact.Get(i, gold.ColDateID))
		if !ok {
			continue
		}
		counts[id]++
		if r, ok := table.ParseFloat(fact.Get(i, gold.ColRevenue)); ok {
			revenue[id] += r
		}
	}

	var s series
	for id := range counts {
		s.days = append(s.days, id)
	}
	slices.Sort(s.days)
	for _, d := range s.days {
		s.counts = append(s.counts, counts[d])
		s.revenue = append(s.revenue, revenue[d])
	}
	return s
}

// latest returns the last value and the median of up to window values
// preceding it.
func (s series) latest(values []float64, window int) (float64, float64) {
	n := len(values)
	from := max(0, n-1-window)
	return values[n-1], median(values[from : n-1])
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func deviation(latest, med float64) float64 {
	if med == 0 {
		if latest == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(latest-med) / med
}

func spikeRatio(latest, med float64) float64 {
	if med == 0 {
		if latest == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return latest / med
}

func insufficient(have, need int) string {
	return fmt.Sprintf("insufficient history: %d days, need %d", have, need)
}

func absent(t *table.Table, columns ...string) []string {
	var out []string
	for _, c := range columns {
		if !t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func sum(values []string) float64 {
	var total float64
	for _, v := range values {
		if f, ok := table.ParseFloat(v); ok {
			total += f
		}
	}
	return total
}

func parseDateID(v string) (time.Time, bool) {
	n, ok := table.ParseInt(v)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse(dateIDLayout, fmt.Sprintf("%08d", n))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func canonicalID(v string) string {
	if n, ok := table.ParseInt(v); ok {
		return table.FormatInt(n)
	}
	return strings.TrimSpace(v)
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
