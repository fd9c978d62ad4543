// Package formatting renders values and reports for human consumption:
// byte sizes for file guards and log lines, and Markdown for quality reports.
package formatting

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrByteSize indicates a size string that ParseBytes cannot read.
var ErrByteSize = errors.New("invalid byte size")

// Base-1024 units, smallest first.
var units = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above one, rounded to precision decimals. Negative precision means zero.
// Plain byte counts are always whole.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	if unit == 0 {
		precision = 0
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[unit]
}

// ParseBytes reads sizes such as "256MB", "10 mb" or "1.5GB". A bare
// number is a byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)

	end := strings.LastIndexAny(s, "0123456789.") + 1
	number, unit := s[:end], strings.ToUpper(strings.TrimSpace(s[end:]))
	if number == "" || strings.HasPrefix(number, "-") {
		return 0, fmt.Errorf("%w: %q", ErrByteSize, s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %q", ErrByteSize, s)
	}

	exp := 0
	if unit != "" {
		if exp = slices.Index(units, unit); exp < 0 {
			return 0, fmt.Errorf("%w: unknown unit %q", ErrByteSize, unit)
		}
	}
	for range exp {
		value *= 1024
	}
	return int64(value), nil
}
