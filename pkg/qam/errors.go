package qam

import "errors"

// Error conditions reported by the codec. Callers match them with errors.Is;
// the returned errors wrap these with a human readable description.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrMissingInput     = errors.New("missing input")
	ErrCorruptSignal    = errors.New("corrupt signal")
	ErrUnsupportedMode  = errors.New("unsupported mode")
)
