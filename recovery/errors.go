package recovery

import (
	"errors"
	"fmt"
)

// Sentinel errors for recovery operations.
var (
	// ErrRecoveryExhausted is returned when every attempt of every
	// configured strategy has failed.
	ErrRecoveryExhausted = errors.New("recovery: all recovery strategies exhausted")

	// ErrCacheMiss is returned by the cache-fallback strategy when no
	// unexpired value exists for the configured key.
	ErrCacheMiss = errors.New("recovery: no cached value available")

	// ErrNoFallbackValue is returned by the fallback strategy when no
	// static value was configured.
	ErrNoFallbackValue = errors.New("recovery: no fallback value configured")

	// ErrAlternativeNotConfigured is returned by the alternative-service
	// strategy when no alternate endpoint was supplied.
	ErrAlternativeNotConfigured = errors.New("recovery: alternative service not configured")
)

// ExhaustedError is the terminal aggregate error carrying everything that
// failed on the way: the primary error first, then each strategy error in
// attempt order.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Errs      []error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("recovery: operation %q exhausted %d recovery attempts (%d errors)",
		e.Operation, e.Attempts, len(e.Errs))
}

func (e *ExhaustedError) Unwrap() error { return ErrRecoveryExhausted }
