package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"steward/internal/gateway/handlers"
)

// RateLimiterConfig configures the per-client rate limiter.
type RateLimiterConfig struct {
	// RequestsPerMinute is the sustained refill rate.
	RequestsPerMinute int
	// Burst is the bucket capacity.
	Burst int
	// Enabled turns limiting on or off.
	Enabled bool
	// CleanupInterval is how often idle buckets are dropped.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns the default rate limiter configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		Burst:             10,
		Enabled:           true,
		CleanupInterval:   5 * time.Minute,
	}
}

// tokenBucket holds the refill state for one client.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// take refills the bucket for elapsed time, then tries to consume one
// token. Returns (allowed, remaining tokens, time until full).
func (b *tokenBucket) take(perMinute, burst int) (bool, int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := float64(perMinute) / 60.0
	now := time.Now()

	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	b.lastRefill = now
	if b.tokens > float64(burst) {
		b.tokens = float64(burst)
	}

	secondsToFull := (float64(burst) - b.tokens) / rate
	reset := now.Add(time.Duration(secondsToFull) * time.Second)

	if b.tokens < 1 {
		return false, 0, reset
	}
	b.tokens--
	return true, int(b.tokens), reset
}

// RateLimiter enforces a token-bucket limit per client IP.
type RateLimiter struct {
	config  RateLimiterConfig
	buckets map[string]*tokenBucket
	mu      sync.RWMutex
	stopCh  chan struct{}
}

// NewRateLimiter creates a rate limiter and, when enabled, starts its
// idle-bucket cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		stopCh:  make(chan struct{}),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		go rl.cleanup()
	}

	return rl
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * rl.config.CleanupInterval)
			rl.mu.Lock()
			for ip, bucket := range rl.buckets {
				bucket.mu.Lock()
				idle := bucket.lastRefill.Before(cutoff)
				bucket.mu.Unlock()
				if idle {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) bucket(ip string) *tokenBucket {
	rl.mu.RLock()
	b, ok := rl.buckets[ip]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok = rl.buckets[ip]; ok {
		return b
	}
	b = &tokenBucket{
		tokens:     float64(rl.config.Burst),
		lastRefill: time.Now(),
	}
	rl.buckets[ip] = b
	return b
}

// Allow checks whether a request from the given IP may proceed.
// Returns (allowed, remaining tokens, reset time).
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Time) {
	if !rl.config.Enabled {
		return true, rl.config.RequestsPerMinute, time.Now().Add(time.Minute)
	}
	return rl.bucket(ip).take(rl.config.RequestsPerMinute, rl.config.Burst)
}

// RateLimit returns the rate limiting middleware.
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, reset := rl.Allow(getClientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(reset).Seconds())+1, 10))
			handlers.SendError(w, http.StatusTooManyRequests,
				handlers.ErrCodeRateLimited, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
