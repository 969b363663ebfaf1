package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound covers both "no such row" and "not visible to this viewer".
// Callers must not be able to tell the two apart.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ReferenceError reports ids in a batch that do not resolve to a row.
type ReferenceError struct {
	Kind    string
	Missing []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Kind, strings.Join(e.Missing, ", "))
}

// errHidden aborts a unit of work whose primary entity is missing or not
// visible. It is turned into ErrNotFound outside withConn so it is not
// counted as a query failure.
var errHidden = errors.New("hidden")

func notFoundIfHidden(err error) error {
	if errors.Is(err, errHidden) {
		return ErrNotFound
	}
	return err
}
