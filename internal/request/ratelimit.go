package request

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter limits requests per blockchain endpoint using a token bucket.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	overrides  map[string]Limit
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// Limit is a per-endpoint rate (requests per second) and burst.
type Limit struct {
	Rate  float64 `yaml:"rate" json:"rate"`
	Burst int     `yaml:"burst" json:"burst"`
}

// NewRateLimiter creates a rate limiter applying ratePerSecond and burst to every endpoint.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		overrides:  make(map[string]Limit),
		rateLimit:  rate.Limit(ratePerSecond),
		burstLimit: burst,
	}
}

// DefaultRateLimiter returns a rate limiter with 5 requests/second and a burst of 10.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(5, 10)
}

// SetLimit overrides the limit of one endpoint. It replaces any limiter already in use.
func (r *RateLimiter) SetLimit(endpoint string, l Limit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[endpoint] = l
	delete(r.limiters, endpoint)
}

// Allow reports whether a request to the endpoint may proceed now.
func (r *RateLimiter) Allow(endpoint string) bool {
	return r.getLimiter(endpoint).Allow()
}

// Wait blocks until a request to the endpoint is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	return r.getLimiter(endpoint).Wait(ctx)
}

func (r *RateLimiter) getLimiter(endpoint string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[endpoint]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = r.limiters[endpoint]; exists {
		return limiter
	}

	if l, ok := r.overrides[endpoint]; ok {
		limiter = rate.NewLimiter(rate.Limit(l.Rate), l.Burst)
	} else {
		limiter = rate.NewLimiter(r.rateLimit, r.burstLimit)
	}
	r.limiters[endpoint] = limiter
	return limiter
}
