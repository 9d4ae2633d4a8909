package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/faultops/middleware"
	"github.com/jonwraymond/faultops/recovery"
	"github.com/jonwraymond/faultops/resilience"
)

func Example() {
	m := middleware.New(middleware.Config{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableRecovery:       true,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			VolumeThreshold:  5,
			MonitoringPeriod: time.Minute,
		},
		Retry: resilience.RetryConfig{
			MaxAttempts: 2,
			Strategy:    resilience.BackoffFixed,
			BaseDelay:   time.Millisecond,
			RetryIf:     func(err error, attempt int) bool { return true },
		},
		Recovery: recovery.Config{
			Strategies:    []recovery.Strategy{recovery.StrategyFallback},
			FallbackValue: "cached profile",
		},
	})

	result, err := m.Execute(context.Background(), "fetch-profile", "tenant-1",
		func(ctx context.Context) (any, error) {
			return nil, errors.New("profile service down")
		})
	if err != nil {
		fmt.Println("failed:", err)
		return
	}

	fmt.Println(result)
	// Output: cached profile
}

func ExampleMiddleware_Recovery() {
	m := middleware.New(middleware.Config{
		EnableRecovery: true,
		Recovery: recovery.Config{
			Strategies: []recovery.Strategy{recovery.StrategyCacheFallback},
			CacheKey:   "inventory",
		},
	})

	// Seed the fallback cache before traffic arrives.
	m.Recovery("list-inventory").SetCacheValue("inventory", []string{"widget"})

	result, err := m.Execute(context.Background(), "list-inventory", "tenant-1",
		func(ctx context.Context) (any, error) {
			return nil, errors.New("inventory service down")
		})
	if err != nil {
		fmt.Println("failed:", err)
		return
	}

	fmt.Println(result)
	// Output: [widget]
}
