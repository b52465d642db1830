package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how fast a single client may ask questions.
// Generation and warehouse execution are expensive, so the limit is applied
// before any downstream work starts.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained refill rate of each client bucket.
	RequestsPerSecond float64
	// Burst is the bucket capacity.
	Burst int
	// idleEviction overrides the stale-entry cutoff in tests.
	idleEviction time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per client address and evicts
// buckets that have been idle long enough to have fully refilled.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	cfg     RateLimitConfig
}

func (p *limiterPool) get(addr string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buckets[addr]; ok {
		b.lastSeen = time.Now()
		return b.limiter
	}
	b := &clientBucket{
		limiter:  rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.Burst),
		lastSeen: time.Now(),
	}
	p.buckets[addr] = b
	return b.limiter
}

func (p *limiterPool) evictIdle(cutoff time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, b := range p.buckets {
		if time.Since(b.lastSeen) > cutoff {
			delete(p.buckets, addr)
		}
	}
}

// RateLimiter enforces a per-client token bucket keyed by remote address.
// Over-limit requests receive 429 with the same JSON error envelope the ask
// surface uses, plus a Retry-After hint.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	pool := &limiterPool{buckets: make(map[string]*clientBucket), cfg: cfg}

	cutoff := cfg.idleEviction
	if cutoff <= 0 {
		cutoff = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(cutoff / 2)
		defer ticker.Stop()
		for range ticker.C {
			pool.evictIdle(cutoff)
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := pool.get(clientAddr(r))

			res := limiter.Reserve()
			if !res.OK() {
				writeRateLimited(w, 0)
				return
			}
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				writeRateLimited(w, int(delay.Seconds())+1)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr keys the bucket on RemoteAddr only. X-Forwarded-For is caller
// controlled and would let one client mint unlimited buckets.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimited(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "RATE_LIMITED",
		"message": "too many requests; slow down and retry",
	})
}
