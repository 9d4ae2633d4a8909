package resilience

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})

	if rl.config.MaxRequests != 100 {
		t.Errorf("MaxRequests = %d, want 100", rl.config.MaxRequests)
	}
	if rl.config.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", rl.config.Window)
	}
}

func TestRateLimiter_AdmitWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 2, Window: time.Second})

	if err := rl.Admit("client-a"); err != nil {
		t.Errorf("Admit() #1 error = %v", err)
	}
	if err := rl.Admit("client-a"); err != nil {
		t.Errorf("Admit() #2 error = %v", err)
	}

	err := rl.Admit("client-a")
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("Admit() #3 error = %v, want *RateLimitError", err)
	}
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Error("RateLimitError should match ErrRateLimitExceeded")
	}
	if rateErr.ClientID != "client-a" {
		t.Errorf("ClientID = %q, want client-a", rateErr.ClientID)
	}
	if rateErr.Limit != 2 {
		t.Errorf("Limit = %d, want 2", rateErr.Limit)
	}
	if rateErr.RetryAfter <= 0 || rateErr.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want within (0, 1s]", rateErr.RetryAfter)
	}
}

func TestRateLimiter_RejectedRequestsNotCounted(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1, Window: time.Minute})

	_ = rl.Admit("client-a")
	for i := 0; i < 10; i++ {
		_ = rl.Admit("client-a")
	}

	if got := rl.Client("client-a").Requests; got != 1 {
		t.Errorf("Requests = %d, rejections must not consume quota", got)
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 2, Window: 50 * time.Millisecond})

	_ = rl.Admit("client-a")
	_ = rl.Admit("client-a")
	if err := rl.Admit("client-a"); err == nil {
		t.Fatal("Admit() should be rejected at the limit")
	}

	time.Sleep(60 * time.Millisecond)

	if err := rl.Admit("client-a"); err != nil {
		t.Errorf("Admit() after window error = %v, want nil", err)
	}
}

func TestRateLimiter_ClientsIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1, Window: time.Minute})

	if err := rl.Admit("client-a"); err != nil {
		t.Errorf("Admit(client-a) error = %v", err)
	}
	if err := rl.Admit("client-a"); err == nil {
		t.Error("client-a should be at its limit")
	}
	if err := rl.Admit("client-b"); err != nil {
		t.Errorf("Admit(client-b) error = %v, limits must be per-client", err)
	}
}

func TestRateLimiter_AllowDoesNotConsume(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1, Window: time.Minute})

	for i := 0; i < 5; i++ {
		if !rl.Allow("client-a") {
			t.Fatal("Allow() should not consume quota")
		}
	}

	rl.Record("client-a")
	if rl.Allow("client-a") {
		t.Error("Allow() = true at the limit, want false")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1, Window: time.Minute})

	_ = rl.Admit("client-a")
	rl.Reset("client-a")

	if err := rl.Admit("client-a"); err != nil {
		t.Errorf("Admit() after reset error = %v", err)
	}
}

func TestRateLimiter_Stats(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 10, Window: time.Minute})

	_ = rl.Admit("client-a")
	_ = rl.Admit("client-a")
	_ = rl.Admit("client-b")

	stats := rl.Stats()
	if len(stats) != 2 {
		t.Fatalf("len(Stats()) = %d, want 2", len(stats))
	}

	byClient := make(map[string]ClientStats, len(stats))
	for _, s := range stats {
		byClient[s.ClientID] = s
	}
	if byClient["client-a"].Requests != 2 {
		t.Errorf("client-a requests = %d, want 2", byClient["client-a"].Requests)
	}
	if byClient["client-b"].Requests != 1 {
		t.Errorf("client-b requests = %d, want 1", byClient["client-b"].Requests)
	}
	if byClient["client-a"].OldestStamp.IsZero() {
		t.Error("OldestStamp should be set for an active client")
	}
}

func TestRateLimiter_ConcurrentAdmit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 50, Window: time.Minute})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := rl.Admit(fmt.Sprintf("client-%d", n%2)); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// 2 clients x 50 requests each: every request should be admitted.
	if admitted != 100 {
		t.Errorf("admitted = %d, want 100", admitted)
	}
	if rl.Client("client-0").Requests != 50 {
		t.Errorf("client-0 requests = %d, want 50", rl.Client("client-0").Requests)
	}
}
