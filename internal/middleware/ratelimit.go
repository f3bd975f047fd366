package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"pet-vaccination-clinic/internal/platform/logger"
)

// RateLimiter limita requests por IP (token bucket). rps <= 0 desactiva el límite.
// Los buckets viven en go-cache: expiran tras ttl sin requests y el janitor los barre
// en segundo plano, fuera del camino de cada request.
type RateLimiter struct {
	mu          sync.Mutex
	visitors    *gocache.Cache // ip -> *rate.Limiter
	overflow    *rate.Limiter
	maxVisitors int
	rps         rate.Limit
	burst       int
	now         func() time.Time
}

const (
	visitorTTL         = 3 * time.Minute
	visitorSweep       = time.Minute
	defaultMaxVisitors = 10000
)

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors:    gocache.New(visitorTTL, visitorSweep),
		overflow:    rate.NewLimiter(rate.Limit(rps), burst),
		maxVisitors: defaultMaxVisitors,
		rps:         rate.Limit(rps),
		burst:       burst,
		now:         time.Now,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var lim *rate.Limiter
	if x, ok := l.visitors.Get(key); ok {
		lim = x.(*rate.Limiter)
	} else if l.visitors.ItemCount() >= l.maxVisitors {
		// tabla llena: las IPs nuevas comparten un único bucket
		lim = l.overflow
	} else {
		lim = rate.NewLimiter(l.rps, l.burst)
	}
	if lim != l.overflow {
		// Set renueva la expiración: el bucket vive mientras la IP siga activa
		l.visitors.Set(key, lim, gocache.DefaultExpiration)
	}

	return lim.AllowN(l.now(), 1)
}

// Middleware responde 429 cuando la IP agota su bucket.
func (l *RateLimiter) Middleware(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.Allow(ip) {
				log.Warn("rate limited", map[string]any{"ip": ip, "path": r.URL.Path})
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP usa RemoteAddr (chi RealIP ya lo reescribe desde X-Forwarded-For).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
