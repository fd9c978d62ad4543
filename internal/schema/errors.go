package schema

import "errors"

// ErrSchemaLoad indicates a schema descriptor could not be read or parsed.
var ErrSchemaLoad = errors.New("load schema")
