package resilience

import (
	"sync"
	"time"
)

// RateLimiterConfig configures the fixed-window rate limiter.
type RateLimiterConfig struct {
	// MaxRequests is the number of requests allowed per client per window.
	// Default: 100
	MaxRequests int

	// Window is the fixed window duration.
	// Default: 1 minute
	Window time.Duration
}

// RateLimiter is a per-client fixed-window request counter. It is a pure
// admission gate: it never executes work and its rejections are not
// circuit-breaker failures.
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	clients map[string][]time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.MaxRequests <= 0 {
		config.MaxRequests = 100
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		config:  config,
		clients: make(map[string][]time.Time),
	}
}

// Allow reports whether the client may issue another request. Stale
// timestamps are pruned before counting.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.pruneLocked(clientID, time.Now())
	return len(rl.clients[clientID]) < rl.config.MaxRequests
}

// Record registers a request for the client.
func (rl *RateLimiter) Record(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.clients[clientID] = append(rl.clients[clientID], time.Now())
}

// Admit combines Allow and Record: it either counts the request or returns
// a *RateLimitError describing the violated window.
func (rl *RateLimiter) Admit(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.pruneLocked(clientID, now)

	stamps := rl.clients[clientID]
	if len(stamps) >= rl.config.MaxRequests {
		return &RateLimitError{
			ClientID:   clientID,
			Limit:      rl.config.MaxRequests,
			Window:     rl.config.Window,
			RetryAfter: stamps[0].Add(rl.config.Window).Sub(now),
		}
	}

	rl.clients[clientID] = append(stamps, now)
	return nil
}

// Reset clears the request history for a client.
func (rl *RateLimiter) Reset(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, clientID)
}

func (rl *RateLimiter) pruneLocked(clientID string, now time.Time) {
	cutoff := now.Add(-rl.config.Window)
	stamps := rl.clients[clientID]

	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	switch {
	case i == len(stamps):
		delete(rl.clients, clientID)
	case i > 0:
		rl.clients[clientID] = append(stamps[:0], stamps[i:]...)
	}
}

// ClientStats describes one client's current window usage.
type ClientStats struct {
	ClientID    string
	Requests    int
	MaxRequests int
	Window      time.Duration
	OldestStamp time.Time
}

// Client returns the current window stats for one client.
func (rl *RateLimiter) Client(clientID string) ClientStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.pruneLocked(clientID, time.Now())

	stats := ClientStats{
		ClientID:    clientID,
		Requests:    len(rl.clients[clientID]),
		MaxRequests: rl.config.MaxRequests,
		Window:      rl.config.Window,
	}
	if stamps := rl.clients[clientID]; len(stamps) > 0 {
		stats.OldestStamp = stamps[0]
	}
	return stats
}

// Stats returns the current window stats for every active client.
func (rl *RateLimiter) Stats() []ClientStats {
	rl.mu.Lock()
	ids := make([]string, 0, len(rl.clients))
	for id := range rl.clients {
		ids = append(ids, id)
	}
	rl.mu.Unlock()

	stats := make([]ClientStats, 0, len(ids))
	for _, id := range ids {
		s := rl.Client(id)
		if s.Requests > 0 {
			stats = append(stats, s)
		}
	}
	return stats
}
