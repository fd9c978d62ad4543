package query

import "fmt"

// Dialect captures the SQL differences between the supported warehouse
// engines: parameter placeholders and case-insensitive matching.
type Dialect int

const (
	// Postgres numbers parameters ($1, $2, ...) and matches with ILIKE.
	Postgres Dialect = iota
	// SQLite uses positional ? parameters; its LIKE already folds ASCII case.
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}

// Placeholder returns the parameter reference for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (d Dialect) like() string {
	if d == SQLite {
		return "LIKE"
	}
	return "ILIKE"
}
