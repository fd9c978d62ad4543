package database

import "errors"

// ErrUnknownDriver indicates a driver name other than pgx or sqlite.
var ErrUnknownDriver = errors.New("unknown database driver")

// ErrInvalidConfig indicates connection settings the driver cannot use.
var ErrInvalidConfig = errors.New("invalid database config")
