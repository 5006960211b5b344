package app

import (
	"errors"
	"fmt"
)

// Sentinel kinds for pipeline errors.
var (
	// ErrQuery matches every *QueryError.
	ErrQuery = errors.New("query failed")
	// ErrMalformedRow marks a source row that does not decode as a session.
	ErrMalformedRow = errors.New("malformed source row")
)

// QueryError reports a store operation that failed after applicable retries
// or returned an unusable payload.
type QueryError struct {
	Op         string // "select" or "upsert"
	Collection string
	Offset     int // page offset for selects, -1 otherwise
	Attempts   int
	Err        error
}

func (e *QueryError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s %s at offset %d failed after %d attempt(s): %v", e.Op, e.Collection, e.Offset, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Op, e.Collection, e.Attempts, e.Err)
}

// Is matches ErrQuery.
func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error { return e.Err }
