package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoGold indicates the fact table has not been built yet.
var ErrNoGold = errors.New("gold fact table not found")

// QualityError reports a data-quality failure of a stage. Unlike other
// errors it does not mean the stage could not run.
type QualityError struct {
	Stage   string
	Details string
}

func (e *QualityError) Error() string {
	return fmt.Sprintf("%s: quality check failed: %s", e.Stage, e.Details)
}

// IsQuality reports whether err carries a QualityError.
func IsQuality(err error) bool {
	var qe *QualityError
	return errors.As(err, &qe)
}
