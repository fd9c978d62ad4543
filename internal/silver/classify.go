package silver

import (
	"strings"
	"time"

	"github.com/JaimeStill/salesflow/pkg/table"
)

// Rule tags recorded in _bad_reason, in evaluation order.
const (
	ReasonBadDate      = "bad_date"
	ReasonMissingGeo   = "missing_geo"
	ReasonNonPosQty    = "neg_or_zero_qty"
	ReasonNonPosPrice  = "neg_or_zero_price"
	reasonSeparator    = ","
	orderDateLayout    = "20060102"
	orderDateDigitsLen = 8
)

// Record is one raw sales row. Every field is untrusted text.
type Record struct {
	OrderID   string
	OrderDate string
	GeoID     string
	ProductID string
	Quantity  string
	UnitPrice string
}

// Verdict is the classification of a record. No reasons means accepted.
type Verdict struct {
	Reasons []string
}

// Accepted reports whether the record passed every rule.
func (v Verdict) Accepted() bool {
	return len(v.Reasons) == 0
}

// Reason joins the violated rule tags with commas.
func (v Verdict) Reason() string {
	return strings.Join(v.Reasons, reasonSeparator)
}

// Classify evaluates every rule against r and collects all failures.
func Classify(r Record) Verdict {
	var reasons []string

	if !validOrderDate(r.OrderDate) {
		reasons = append(reasons, ReasonBadDate)
	}
	if strings.TrimSpace(r.GeoID) == "" {
		reasons = append(reasons, ReasonMissingGeo)
	}
	if q, ok := table.TruncInt(r.Quantity); !ok || q <= 0 {
		reasons = append(reasons, ReasonNonPosQty)
	}
	if p, ok := table.ParseFloat(r.UnitPrice); !ok || p <= 0 {
		reasons = append(reasons, ReasonNonPosPrice)
	}

	return Verdict{Reasons: reasons}
}

// validOrderDate accepts exactly eight ASCII digits forming a real
// calendar date. Surrounding whitespace is not tolerated.
func validOrderDate(s string) bool {
	if len(s) != orderDateDigitsLen {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	_, err := time.Parse(orderDateLayout, s)
	return err == nil
}
