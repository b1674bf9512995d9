package internaltypes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatError(t *testing.T) {
	var err error = fmt.Errorf("parse: %w", &FormatError{Field: "time", Value: "25:00"})

	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "time", fe.Field)
	assert.Contains(t, err.Error(), `invalid time "25:00"`)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("probe: %w", ErrRecoverableProbe)))
	assert.True(t, IsRetryable(ErrSessionStale))
	assert.False(t, IsRetryable(ErrFatalAuth))
	assert.False(t, IsRetryable(ErrBookingWindowNotOpen))
	assert.False(t, IsRetryable(nil))
}
