package internaltypes

import (
	"errors"
	"fmt"
)

var (
	ErrRecoverableProbe     = errors.New("recoverable probe error")
	ErrFatalAuth            = errors.New("fatal auth error")
	ErrSessionStale         = errors.New("session stale")
	ErrBookingWindowNotOpen = errors.New("booking window not open")
	ErrBookingRejected      = errors.New("booking rejected")
	ErrNotFound             = errors.New("not found")
)

// FormatError reports a malformed user input (time, date, duration).
// It is raised before any network activity.
type FormatError struct {
	Field string
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// IsRetryable reports whether err is worth another probe cycle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRecoverableProbe) || errors.Is(err, ErrSessionStale)
}
