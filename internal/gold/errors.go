package gold

import "errors"

var (
	// ErrNoInput indicates the silver directory holds no sales_clean_*.csv files.
	ErrNoInput = errors.New("no silver files found")
	// ErrRevenueUnresolvable indicates neither a revenue column nor a
	// quantity and price pair exists to derive one.
	ErrRevenueUnresolvable = errors.New("cannot resolve revenue column")
	// ErrKeyUnresolvable indicates no natural key could be matched to the columns.
	ErrKeyUnresolvable = errors.New("cannot resolve natural key")
)
