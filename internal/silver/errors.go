package silver

import "errors"

var (
	// ErrNoInput indicates the raw directory holds no sales_<YYYYMMDD>.csv files.
	ErrNoInput = errors.New("no raw sales files found")
	// ErrInputTooLarge indicates a raw file exceeds silver.max_file_size.
	ErrInputTooLarge = errors.New("raw file exceeds size limit")
)

// ErrFileName indicates a raw file name that does not match sales_<YYYYMMDD>.csv.
var ErrFileName = errors.New("raw file name must match sales_<YYYYMMDD>.csv")
