package crud

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist or belongs to another
// user. The two cases are intentionally indistinguishable so that callers
// cannot probe for the existence of other tenants' records.
var ErrNotFound = errors.New("record not found")

// ErrUnknownKind is returned for list requests naming an unrecognized
// record kind.
var ErrUnknownKind = errors.New("unknown record kind")

// ConflictError reports a uniqueness violation, naming the offending value.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
