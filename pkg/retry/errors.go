package retry

import "errors"

// Sentinel kinds for retry errors.
var (
	ErrExhausted = errors.New("retries exhausted")
)
