package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Sentinel kinds for store errors.
var (
	// ErrTransient marks failures worth retrying.
	ErrTransient = errors.New("transient store failure")
	// ErrNoData is returned when a successful response carries no payload.
	ErrNoData = errors.New("store returned no data")
	// ErrStatus is returned for non-2xx HTTP responses.
	ErrStatus = errors.New("unexpected response status")
	// ErrInvalidIdentifier rejects collection or column names unsafe to
	// interpolate into SQL.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidRow rejects rows that are not JSON objects or lack the
	// conflict key.
	ErrInvalidRow = errors.New("invalid row")
)

// StatusError wraps a non-2xx PostgREST response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", ErrStatus, e.StatusCode, e.Body)
}

// Is matches ErrStatus.
func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// IsTransient reports whether err is a connectivity or timeout failure.
// Authentication, status and payload errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
