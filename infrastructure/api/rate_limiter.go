package api

import (
	"chat-presence/clock"
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type ipAddr string

// IPRateLimiter keeps one token bucket per client address. Buckets idle for
// longer than TTL are dropped by Run.
type IPRateLimiter struct {
	mu       sync.Mutex
	log      *slog.Logger
	clock    clock.Clock
	limiters map[ipAddr]*rate.Limiter
	lastSeen map[ipAddr]time.Time
	rate     rate.Limit
	burst    int
	CleanupOpts
}

// NewIPRateLimiter allows requests per window and client, with bursts up to
// requests.
func NewIPRateLimiter(log *slog.Logger, clk clock.Clock, requests int, window time.Duration, cleanupOpts CleanupOpts) *IPRateLimiter {
	return &IPRateLimiter{
		log:         log,
		clock:       clk,
		limiters:    make(map[ipAddr]*rate.Limiter),
		lastSeen:    make(map[ipAddr]time.Time),
		rate:        rate.Every(window / time.Duration(requests)),
		burst:       requests,
		CleanupOpts: cleanupOpts,
	}
}

// Run evicts idle buckets until ctx is cancelled.
func (rl *IPRateLimiter) Run(ctx context.Context) error {
	ticker := rl.clock.NewTicker(rl.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *IPRateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clock.Now()
	for ip, ls := range rl.lastSeen {
		if now.Sub(ls) > rl.TTL {
			delete(rl.limiters, ip)
			delete(rl.lastSeen, ip)
		}
	}
}

func (rl *IPRateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// GetClientIP reads the remote address. Proxy headers are resolved earlier by
// middleware.RealIP.
func (rl *IPRateLimiter) GetClientIP(r *http.Request) ipAddr {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ipAddr(r.RemoteAddr)
	}
	return ipAddr(host)
}

func (rl *IPRateLimiter) Allow(ip ipAddr) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.limiters[ip]
	if !ok {
		bucket = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = bucket
	}

	now := rl.clock.Now()
	rl.lastSeen[ip] = now
	return bucket.AllowN(now, 1)
}

func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.GetClientIP(r)

		if !rl.Allow(ip) {
			rl.log.WarnContext(r.Context(), "Rate limit exceeded",
				"ip", ip,
				"path", r.URL.Path,
				"method", r.Method)
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests, try again later"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
