package sink

import (
	"errors"
	"fmt"
)

// ErrTransient and ErrPermanent classify sink failures: transient failures
// are worth retrying, permanent ones are not expected to succeed on retry
// but are still retried up to the configured ceiling, since the core does
// not distinguish retry policy by failure class (spec.md §4.3 treats every
// non-success as a soft failure).
var (
	ErrTransient = errors.New("sink: transient failure")
	ErrPermanent = errors.New("sink: permanent failure")
)

// WrapTransient annotates err as transient.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// WrapPermanent annotates err as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}
