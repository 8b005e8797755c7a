package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/conneroisu/courseview/internal/errors"
	"github.com/conneroisu/courseview/internal/logging"
)

// contentSecurityPolicy allows the inline shell script and style and the
// websocket back to the same host.
const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws: wss:; " +
	"object-src 'none'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	IdleTimeout       time.Duration
	Enabled           bool
}

// DefaultRateLimitConfig is generous enough for a classroom behind one NAT.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTimeout:       5 * time.Minute,
		Enabled:           true,
	}
}

type visitor struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	config *RateLimitConfig
	logger logging.Logger

	mu       sync.Mutex
	visitors map[string]*visitor

	cleaner  *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its idle-bucket cleanup.
func NewRateLimiter(config *RateLimitConfig, logger logging.Logger) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	rl := &RateLimiter{
		config:   config,
		logger:   logger,
		visitors: make(map[string]*visitor),
		cleaner:  time.NewTicker(time.Minute),
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether a request from key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.config.Enabled {
		return true
	}

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)}
		rl.visitors[key] = v
	}
	v.lastAccess = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case now := <-rl.cleaner.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if now.Sub(v.lastAccess) > rl.config.IdleTimeout {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleaner.Stop()
		close(rl.stop)
	})
}

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		applySecurityHeaders(w)

		ip := remoteIP(r)
		if !s.limiter.Allow(ip) {
			s.logger.Warn(r.Context(),
				errors.NewValidationError("RATE_LIMIT_EXCEEDED", "Rate limit exceeded"),
				"Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.isAllowedRequestOrigin(r) {
			s.logger.Warn(r.Context(), nil, "Cross-origin request rejected",
				"origin", r.Header.Get("Origin"), "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(rec, r)

		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func applySecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Security-Policy", contentSecurityPolicy)
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// isAllowedRequestOrigin accepts requests without an Origin (curl, the CLI),
// same-origin requests and the configured origins.
func (s *Server) isAllowedRequestOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return s.origins.IsAllowedOrigin(origin)
}

// remoteIP ignores forwarding headers, which clients can forge.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
