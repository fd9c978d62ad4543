// Package fixture generates deterministic synthetic raw sales files for
// demos and tests.
package fixture

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JaimeStill/salesflow/pkg/table"
)

const (
	minRows   = 80
	maxRows   = 140
	dupRate   = 0.02
	badRate   = 0.05
	dayLayout = "20060102"
)

var (
	geoPool     = []string{"GEO01", "GEO02", "GEO03", "GEO04", "GEO05"}
	productPool = []string{"P001", "P002", "P003", "P004", "P005", "P006", "P007", "P008"}
	pricePool   = []float64{100, 150, 200, 250, 300, 500, 800, 1000}
	rawColumns  = []string{"order_id", "order_date", "geo_id", "product_id", "quantity", "unit_price"}
)

type badKind int

const (
	negQty badKind = iota
	zeroPrice
	missingGeo
	badDate
	badKinds
)

// Generate writes sales_<YYYYMMDD>.csv for days consecutive days ending at
// end (inclusive) and returns the written paths. Output depends only on
// the arguments: the same seed always yields the same files.
func Generate(dir string, days int, seed uint64, end time.Time) ([]string, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	start := end.AddDate(0, 0, -(days - 1))

	paths := make([]string, 0, days)
	for i := range days {
		day := start.AddDate(0, 0, i).Format(dayLayout)
		path := filepath.Join(dir, fmt.Sprintf("sales_%s.csv", day))

		if err := table.WriteFile(path, generateDay(rng, day)); err != nil {
			return nil, fmt.Errorf("write fixture day %s: %w", day, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func generateDay(rng *rand.Rand, day string) *table.Table {
	n := minRows + rng.IntN(maxRows-minRows+1)
	rows := make([][]string, 0, n+n/10)

	for i := range n {
		rows = append(rows, []string{
			fmt.Sprintf("%s-%04d", day, i),
			day,
			pick(rng, geoPool),
			pick(rng, productPool),
			strconv.Itoa(1 + rng.IntN(5)),
			formatPrice(pick(rng, pricePool)),
		})
	}

	dups := max(1, roundRate(n, dupRate))
	for _, i := range rng.Perm(n)[:dups] {
		rows = append(rows, rows[i])
	}

	bad := max(1, roundRate(len(rows), badRate))
	for i := range bad {
		row := []string{
			fmt.Sprintf("%s-BAD%03d", day, i),
			day,
			pick(rng, geoPool),
			pick(rng, productPool),
			strconv.Itoa(1 + rng.IntN(5)),
			formatPrice(pick(rng, pricePool)),
		}
		switch badKind(rng.IntN(int(badKinds))) {
		case negQty:
			row[4] = strconv.Itoa(-(1 + rng.IntN(4)))
		case zeroPrice:
			row[5] = formatPrice(0)
		case missingGeo:
			row[2] = ""
		case badDate:
			row[1] = fmt.Sprintf("2025%d%d", 13+rng.IntN(7), 32+rng.IntN(8))
		}
		rows = append(rows, row)
	}

	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	t := table.New(rawColumns...)
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func pick[T any](rng *rand.Rand, pool []T) T {
	return pool[rng.IntN(len(pool))]
}

func roundRate(n int, rate float64) int {
	return int(float64(n)*rate + 0.5)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}
