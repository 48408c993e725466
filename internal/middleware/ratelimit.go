package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig is a fixed window: at most RequestsPerWindow requests per
// key every WindowDuration.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Validate rejects non-positive limits and windows.
func (c RateLimitConfig) Validate() error {
	var errs []error
	if c.RequestsPerWindow <= 0 {
		errs = append(errs, fmt.Errorf("requests per window must be positive, got %d", c.RequestsPerWindow))
	}
	if c.WindowDuration <= 0 {
		errs = append(errs, fmt.Errorf("window duration must be positive, got %s", c.WindowDuration))
	}
	return errors.Join(errs...)
}

// DefaultFeedLimit is the limit on the ranked feed, the costliest route.
func DefaultFeedLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute}
}

// DefaultSearchLimit is the limit on unscored search.
func DefaultSearchLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 120, WindowDuration: time.Minute}
}

// RateLimitStore holds per-key counters.
type RateLimitStore interface {
	// Allow counts one request for key. remaining is what is left in the
	// window; retryAfter is the whole seconds until it resets and is only
	// set when the request is rejected.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

// retryAfterSeconds rounds d up to whole seconds, never below 1.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int((d+time.Second-1)/time.Second))
}

// KeyFunc derives the rate limit key of a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys on the client address. Forwarding headers are honoured
// only when the connecting peer lies in a trusted proxy prefix; then the
// X-Forwarded-For chain is walked from the right and the first untrusted hop
// wins, falling back to X-Real-IP. With no trusted prefixes the key is
// always the connection's remote host, so clients cannot pick their own key
// by sending the headers.
func IPKeyFunc(trusted ...netip.Prefix) KeyFunc {
	isTrusted := func(a netip.Addr) bool {
		for _, p := range trusted {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := r.RemoteAddr
		if host, _, err := net.SplitHostPort(peer); err == nil {
			peer = host
		}
		addr, err := netip.ParseAddr(peer)
		if err != nil || !isTrusted(addr.Unmap()) {
			return peer
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				a, err := netip.ParseAddr(hop)
				if err != nil {
					break
				}
				if !isTrusted(a.Unmap()) || i == 0 {
					return hop
				}
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			if _, err := netip.ParseAddr(ip); err == nil {
				return ip
			}
		}
		return peer
	}
}

// ViewerKeyFunc keys authenticated requests as "viewer:<id>" and everything
// else as "ip:<addr>" using IPKeyFunc with the same trusted prefixes.
func ViewerKeyFunc(trusted ...netip.Prefix) KeyFunc {
	byIP := IPKeyFunc(trusted...)
	return func(r *http.Request) string {
		if id, ok := GetViewerID(r.Context()); ok {
			return "viewer:" + strconv.FormatInt(id, 10)
		}
		return "ip:" + byIP(r)
	}
}

func keyType(key string) string {
	if strings.HasPrefix(key, "viewer:") {
		return "viewer"
	}
	return "ip"
}

// RateLimiter rejects requests over config with 429, a Retry-After header
// and the JSON error envelope. Every response carries X-RateLimit-Limit and
// X-RateLimit-Remaining. metrics may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	limit := strconv.Itoa(config.RequestsPerWindow)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			route, kind := normalizePath(r.URL.Path), keyType(key)
			if metrics != nil {
				metrics.IncRateLimitRequests(route, kind)
			}

			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			if metrics != nil {
				metrics.IncRateLimitBlocked(route, kind)
			}
			reset := time.Now().Add(time.Duration(retryAfter) * time.Second)
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests, please retry later")
		})
	}
}
