package anticheat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed identifiers or out-of-range
	// values. Nothing is computed or persisted when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable is returned when a signal source or store fails.
	// A failed read is never replaced by a zero score.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

func upstreamError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, source, err)
}
