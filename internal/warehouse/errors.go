package warehouse

import "errors"

var (
	// ErrNotFound indicates no fact row has the requested order_id.
	ErrNotFound = errors.New("fact not found")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("fact already exists")
	// ErrInvalidFact indicates a gold row that cannot be typed for loading.
	ErrInvalidFact = errors.New("invalid fact row")
)
