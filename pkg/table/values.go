package table

import (
	"math"
	"strconv"
	"strings"
)

// IsNull reports whether a cell holds the null value.
func IsNull(v string) bool {
	return v == ""
}

// ParseFloat parses a trimmed cell as a finite number.
func ParseFloat(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInt parses a trimmed cell as an integer. Integral floats such as
// "3.0" are accepted; values with a fractional part are not.
func ParseInt(v string) (int64, bool) {
	s := strings.TrimSpace(v)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, ok := ParseFloat(s)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// TruncInt parses a trimmed cell as a finite number and truncates it toward
// zero. Values outside the int64 range are rejected.
func TruncInt(v string) (int64, bool) {
	f, ok := ParseFloat(v)
	if !ok {
		return 0, false
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

// FormatFloat renders a float in its shortest round-tripping decimal form.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatInt renders an integer in base 10.
func FormatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
