package timestamp

import "errors"

// Sentinel kinds for timestamp errors.
var (
	ErrNaive   = errors.New("timestamp has no UTC offset")
	ErrInvalid = errors.New("invalid timestamp")
)
