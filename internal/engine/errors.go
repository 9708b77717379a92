package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrBusy is returned when the same action is already in flight.
var ErrBusy = errors.New("action already in progress")

// ValidationError is a local pre-check failure. Nothing was submitted; the
// message is meant for a blocking notice rather than the status line.
type ValidationError struct {
	Reason string
	// Wait is the remaining cooldown when the check failed on one.
	Wait time.Duration
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a local pre-check failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
