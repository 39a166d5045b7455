// Package middleware holds the HTTP middleware shared by the service's
// routes: per-client rate limiting and structured request logging.
package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a per-client token bucket, keyed by remote address.
//
// Client entries are pruned after an idle TTL so the map does not grow
// without bound under churny traffic.
type Limiter struct {
	perSecond float64
	burst     int

	mu        sync.Mutex
	clients   map[string]*client
	ttl       time.Duration
	lastPrune time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		perSecond: perSecond,
		burst:     burst,
		clients:   make(map[string]*client),
		ttl:       10 * time.Minute,
		lastPrune: time.Now(),
	}
}

// Middleware rejects requests exceeding the client's budget with 429 and
// advertises the limit in X-RateLimit headers.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.clientLimiter(clientKey(r))

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%g", l.perSecond))
		if !lim.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"message": "request rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) clientLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > l.ttl {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > l.ttl {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.perSecond), l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// clientKey identifies the caller: the first X-Forwarded-For hop when the
// service sits behind a proxy, the remote host otherwise.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
