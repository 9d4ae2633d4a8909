package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffFixed uses the same delay for all retries.
	BackoffFixed
	// BackoffLinear increases delay linearly with the attempt number.
	BackoffLinear
	// BackoffFibonacci scales the delay by the Fibonacci sequence.
	BackoffFibonacci
	// BackoffJittered scales the exponential delay by a uniform random
	// factor in [0.5, 1.0) to spread out synchronized retries.
	BackoffJittered
)

// String returns the string representation of the strategy.
func (s BackoffStrategy) String() string {
	switch s {
	case BackoffExponential:
		return "exponential"
	case BackoffFixed:
		return "fixed"
	case BackoffLinear:
		return "linear"
	case BackoffFibonacci:
		return "fibonacci"
	case BackoffJittered:
		return "jittered"
	default:
		return "unknown"
	}
}

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// BaseDelay is the delay before the first retry.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential strategies.
	// Default: 2.0
	Multiplier float64

	// Jitter applies an extra +/-10% variance to non-jittered strategies.
	// Default: false
	Jitter bool

	// RetryIf determines whether a failed attempt should be retried. A
	// false return aborts immediately without consuming the remaining
	// attempts and the operation's own error propagates.
	// Default: DefaultRetryable.
	RetryIf func(err error, attempt int) bool

	// OnRetry is called before each delay wait.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Timeout bounds the entire retry loop, delays included. Zero means
	// no overall budget.
	Timeout time.Duration
}

// RetryAttempt is one entry in the per-run attempt log.
type RetryAttempt struct {
	Attempt   int
	Timestamp time.Time
	Delay     time.Duration
	Duration  time.Duration
	Success   bool
	Err       error
}

// RetryResult describes a successful retry run.
type RetryResult struct {
	Value     any
	Attempts  int
	TotalTime time.Duration
	Errs      []error
	Log       []RetryAttempt
}

// Retry implements bounded re-execution with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error, _ int) bool { return DefaultRetryable(err) }
	}

	return &Retry{config: config}
}

// Execute runs the operation with retry logic. On success it returns a
// result carrying the attempt count, elapsed time, and the errors seen on
// the way. On failure it returns one of *RetryExhaustedError,
// *RetryTimeoutError, *RetryAbortedError, or the operation's own error when
// RetryIf classified it as not retryable.
func (r *Retry) Execute(ctx context.Context, op Operation) (*RetryResult, error) {
	start := time.Now()

	var budget <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		budget = timer.C
	}

	var errs []error
	var log []RetryAttempt

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &RetryAbortedError{Attempts: attempt - 1, Errs: errs, Cause: err}
		}
		if r.config.Timeout > 0 && time.Since(start) >= r.config.Timeout {
			return nil, &RetryTimeoutError{Attempts: attempt - 1, Elapsed: time.Since(start), Errs: errs}
		}

		attemptStart := time.Now()
		result, err := op(ctx)
		duration := time.Since(attemptStart)

		entry := RetryAttempt{
			Attempt:   attempt,
			Timestamp: attemptStart,
			Duration:  duration,
			Success:   err == nil,
			Err:       err,
		}

		if err == nil {
			log = append(log, entry)
			return &RetryResult{
				Value:     result,
				Attempts:  attempt,
				TotalTime: time.Since(start),
				Errs:      errs,
				Log:       log,
			}, nil
		}

		errs = append(errs, err)

		// Not retryable: surface the operation's error without burning
		// the remaining attempts.
		if !r.config.RetryIf(err, attempt) {
			log = append(log, entry)
			return nil, err
		}

		if attempt >= r.config.MaxAttempts {
			log = append(log, entry)
			break
		}

		delay := r.calculateDelay(attempt)
		entry.Delay = delay
		log = append(log, entry)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return nil, &RetryAbortedError{Attempts: attempt, Errs: errs, Cause: ctx.Err()}
		case <-budget:
			return nil, &RetryTimeoutError{Attempts: attempt, Elapsed: time.Since(start), Errs: errs}
		case <-time.After(delay):
			// Continue to next attempt
		}
	}

	return nil, &RetryExhaustedError{Attempts: r.config.MaxAttempts, Errs: errs}
}

func (r *Retry) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.Strategy {
	case BackoffFixed:
		delay = r.config.BaseDelay

	case BackoffLinear:
		delay = r.config.BaseDelay * time.Duration(attempt)

	case BackoffFibonacci:
		delay = r.config.BaseDelay * time.Duration(fibonacci(attempt))

	case BackoffExponential, BackoffJittered:
		multiplier := math.Pow(r.config.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.BaseDelay) * multiplier)
	}

	// Clamp to [0, MaxDelay]
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}

	switch {
	case r.config.Strategy == BackoffJittered:
		// Uniform factor in [0.5, 1.0)
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))

	case r.config.Jitter && delay > 0:
		// +/-10% variance
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay = time.Duration(float64(delay) * (0.9 + rand.Float64()*0.2))
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// fibonacci returns the nth Fibonacci number (1, 1, 2, 3, 5, ...).
func fibonacci(n int) int {
	a, b := 1, 1
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return a
}

// retryableFragments are matched against lowercased error messages by
// DefaultRetryable. Message sniffing is brittle across drivers and locales;
// callers with typed errors should supply their own RetryIf instead.
var retryableFragments = []string{
	"network",
	"timeout",
	"timed out",
	"connection",
	"econnreset",
	"econnrefused",
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"service unavailable",
}

// DefaultRetryable classifies transient-looking errors as retryable based
// on their message text.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
