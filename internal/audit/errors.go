package audit

import "errors"

// ErrNoFact indicates the fact table to audit does not exist.
var ErrNoFact = errors.New("fact table not found")
