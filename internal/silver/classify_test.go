package silver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/salesflow/internal/silver"
)

func validRecord() silver.Record {
	return silver.Record{
		OrderID:   "20250101-0001",
		OrderDate: "20250101",
		GeoID:     "GEO01",
		ProductID: "P001",
		Quantity:  "3",
		UnitPrice: "100",
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*silver.Record)
		want   []string
	}{
		{"valid", func(*silver.Record) {}, nil},
		{"negative quantity", func(r *silver.Record) { r.Quantity = "-1" }, []string{"neg_or_zero_qty"}},
		{"zero quantity", func(r *silver.Record) { r.Quantity = "0" }, []string{"neg_or_zero_qty"}},
		{"unparseable quantity", func(r *silver.Record) { r.Quantity = "three" }, []string{"neg_or_zero_qty"}},
		{"non-finite quantity", func(r *silver.Record) { r.Quantity = "NaN" }, []string{"neg_or_zero_qty"}},
		{"fractional quantity below one", func(r *silver.Record) { r.Quantity = "0.5" }, []string{"neg_or_zero_qty"}},
		{"quantity beyond int64", func(r *silver.Record) { r.Quantity = "1e19" }, []string{"neg_or_zero_qty"}},
		{"fractional quantity truncated", func(r *silver.Record) { r.Quantity = "2.7" }, nil},
		{"padded quantity accepted", func(r *silver.Record) { r.Quantity = " 2 " }, nil},
		{"empty geo", func(r *silver.Record) { r.GeoID = "" }, []string{"missing_geo"}},
		{"blank geo", func(r *silver.Record) { r.GeoID = "   " }, []string{"missing_geo"}},
		{"impossible date", func(r *silver.Record) { r.OrderDate = "20259999" }, []string{"bad_date"}},
		{"february 30", func(r *silver.Record) { r.OrderDate = "20250230" }, []string{"bad_date"}},
		{"dashed date", func(r *silver.Record) { r.OrderDate = "2025-01-01" }, []string{"bad_date"}},
		{"padded date", func(r *silver.Record) { r.OrderDate = " 20250101" }, []string{"bad_date"}},
		{"short date", func(r *silver.Record) { r.OrderDate = "2025011" }, []string{"bad_date"}},
		{"zero price", func(r *silver.Record) { r.UnitPrice = "0" }, []string{"neg_or_zero_price"}},
		{"every rule", func(r *silver.Record) {
			r.OrderDate = ""
			r.GeoID = ""
			r.Quantity = "-2"
			r.UnitPrice = ""
		}, []string{"bad_date", "missing_geo", "neg_or_zero_qty", "neg_or_zero_price"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			v := silver.Classify(rec)
			assert.Equal(t, tt.want, v.Reasons)
			assert.Equal(t, len(tt.want) == 0, v.Accepted())
		})
	}
}

func TestVerdictReason(t *testing.T) {
	v := silver.Verdict{Reasons: []string{silver.ReasonBadDate, silver.ReasonMissingGeo}}
	assert.Equal(t, "bad_date,missing_geo", v.Reason())
	assert.Equal(t, "", silver.Verdict{}.Reason())
}
