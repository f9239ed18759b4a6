package schema

import "errors"

// Document-shape errors. Each is returned only when the matching silent
// option is off; otherwise compilation yields an empty schema.
var (
	ErrEmptySchema         = errors.New("schema document is empty")
	ErrInvalidSchema       = errors.New("schema document is invalid")
	ErrSchemaMissingFields = errors.New("schema document is missing required keys")
)

// Semantic errors. These are always returned.
var (
	ErrNotDeclaredValidationMapping = errors.New("validation mapping not declared")
	ErrNotDeclaredFields            = errors.New("fields not declared")
	ErrNotDeclaredUniqueFields      = errors.New("unique fields not declared")
)
