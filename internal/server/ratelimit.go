// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	mmerr "github.com/magic-matching/magicmatch/pkg/errors"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP. Zero defaults to one.
	Burst int
	// MaxVisitors caps the number of IPs tracked. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return mmerr.Errorf(mmerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.Burst < 0 {
		return mmerr.Errorf(mmerr.CodeServerConfigInvalid,
			"rate limit burst must not be negative (got %d)", c.Burst)
	}
	if c.MaxVisitors < 0 {
		return mmerr.Errorf(mmerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.RequestsPerSecond > 0 && c.Burst == 0 {
		c.Burst = 1
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors tracks one token bucket per client IP.
type visitors struct {
	mu      sync.Mutex
	entries map[string]*visitor
	cfg     RateLimitConfig
}

func (v *visitors) allow(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[ip]
	if !ok {
		e = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// cleanup drops idle visitors and enforces the MaxVisitors cap, oldest first.
func (v *visitors) cleanup(now time.Time) {
	const staleThreshold = 10 * time.Minute

	v.mu.Lock()
	defer v.mu.Unlock()

	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(v.entries))
	for ip, e := range v.entries {
		if now.Sub(e.lastSeen) > staleThreshold {
			delete(v.entries, ip)
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: e.lastSeen})
	}

	if v.cfg.MaxVisitors > 0 && len(entries) > v.cfg.MaxVisitors {
		slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
		toEvict := len(entries) - v.cfg.MaxVisitors
		for _, e := range entries[:toEvict] {
			delete(v.entries, e.ip)
		}
		slog.Warn("rate limiter visitor map cap enforced",
			"evicted", toEvict, "max_visitors", v.cfg.MaxVisitors, "remaining", len(v.entries))
	}
}

// rateLimitMiddleware returns middleware that enforces per-IP rate limits.
// Returns a pass-through middleware when cfg.RequestsPerSecond is zero.
// The done channel signals the cleanup goroutine to exit on shutdown.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	v := &visitors{entries: make(map[string]*visitor), cfg: cfg}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				v.cleanup(now)
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Rate-limit by IP, not by connection.
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !v.allow(host, time.Now()) {
				slog.Warn("rate limit exceeded", "ip", host, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
