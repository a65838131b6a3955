package httpx

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a ceiling of RequestsPerWindow per key per Window.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

var (
	// LoginLimit gates login, registration and second-factor submission.
	LoginLimit = RateLimitConfig{RequestsPerWindow: 5, Window: 15 * time.Minute}

	// GeneralLimit applies to every other endpoint.
	GeneralLimit = RateLimitConfig{RequestsPerWindow: 100, Window: 15 * time.Minute}
)

// Limiter decides whether one more request for key fits under the limit.
// retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// KeyExtractor derives the rate-limit key for a request.
type KeyExtractor func(*http.Request) string

// ClientIP returns the caller's address. Forwarding headers are only
// honoured with trustProxy, otherwise any client could pick its own key.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// IPKeyExtractor keys requests by ClientIP.
func IPKeyExtractor(trustProxy bool) KeyExtractor {
	return func(r *http.Request) string { return ClientIP(r, trustProxy) }
}

// RateLimit rejects requests over the limiter's ceiling with 429 and a
// Retry-After header. name scopes keys so separate limits never share
// counters. A limiter backend error lets the request through.
func RateLimit(l Limiter, name string, cfg RateLimitConfig, key KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			k := key(r)
			if k == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := l.Allow(ctx, name+":"+k)
			if err != nil {
				log.Warn("rate limit backend error, allowing request", "limit", name, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			if !allowed {
				secs := max(int((retryAfter+time.Second-1)/time.Second), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))

				log.Warn("rate limit exceeded", "limit", name, "key", k, "retry_after", secs)
				WriteError(w, http.StatusTooManyRequests, CodeRateLimited,
					"too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MemoryLimiter is the in-process counterpart of RedisLimiter: a sliding
// window holding the timestamps of the last RequestsPerWindow allowed
// requests per key. A key never gets more than RequestsPerWindow requests
// through in any span of Window.
type MemoryLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time

	// Idle keys are swept at most every few minutes.
	sweep rate.Sometimes
}

// NewMemoryLimiter builds an in-process limiter. now may be nil.
func NewMemoryLimiter(cfg RateLimitConfig, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		cfg:   cfg,
		now:   now,
		hits:  make(map[string][]time.Time),
		sweep: rate.Sometimes{Interval: 5 * time.Minute},
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep.Do(func() { m.dropIdle(now) })

	hits := trimBefore(m.hits[key], now.Add(-m.cfg.Window))
	if len(hits) < m.cfg.RequestsPerWindow {
		m.hits[key] = append(hits, now)
		return true, 0, nil
	}

	m.hits[key] = hits
	return false, hits[0].Add(m.cfg.Window).Sub(now), nil
}

// dropIdle forgets keys with no hit inside the window. Callers hold mu.
func (m *MemoryLimiter) dropIdle(now time.Time) {
	cutoff := now.Add(-m.cfg.Window)
	for key, hits := range m.hits {
		if len(trimBefore(hits, cutoff)) == 0 {
			delete(m.hits, key)
		}
	}
}

// trimBefore drops the leading timestamps at or before cutoff, matching
// the ZREMRANGEBYSCORE bound used by the Redis script.
func trimBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
