package rpc

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aitbc-network/chain-node/metrics"
)

var (
	metricRequestsTotal      = metrics.NewRegisteredCounter("rpc_requests_total", "completed RPC requests")
	metricClientErrors       = metrics.NewRegisteredCounter("rpc_client_errors_total", "RPC responses with a 4xx status")
	metricServerErrors       = metrics.NewRegisteredCounter("rpc_server_errors_total", "RPC responses with a 5xx status")
	metricUnhandledErrors    = metrics.NewRegisteredCounter("rpc_unhandled_errors_total", "RPC requests that panicked")
	metricRequestDuration    = metrics.NewRegisteredSummary("rpc_request_duration_seconds", "RPC request handling latency")
	metricRateLimited        = metrics.NewRegisteredCounter("rpc_rate_limited_total", "requests rejected by the per-IP rate limiter")
)

// statusRecorder captures the status code a handler wrote, the way the
// original's RequestLoggingMiddleware inspects response.status_code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware carries over the original's RequestLoggingMiddleware:
// every request is timed and classified, unhandled panics are converted to
// a 503 instead of crashing the server.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if err := recover(); err != nil {
				metricUnhandledErrors.Inc()
				rpcLog.Error("unhandled error in request", "method", r.Method, "path", r.URL.Path, "err", err)
				http.Error(w, `{"detail":"internal server error"}`, http.StatusServiceUnavailable)
				return
			}
			duration := time.Since(start)
			metricRequestDuration.Observe(duration.Seconds())
			metricRequestsTotal.Inc()
			switch {
			case rec.status >= 500:
				metricServerErrors.Inc()
				rpcLog.Error("server error", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration_ms", duration.Milliseconds())
			case rec.status >= 400:
				metricClientErrors.Inc()
			}
		}()

		next.ServeHTTP(rec, r)
	})
}

// ipRateLimiter is one token-bucket limiter per source IP, evicted on an
// interval — the ecosystem-standard replacement (golang.org/x/time/rate)
// for the original's hand-rolled sliding-window request list.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
	done     chan struct{}
}

func newIPRateLimiter(r rate.Limit, burst int) *ipRateLimiter {
	l := &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
		done:     make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

func (l *ipRateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.limiters = make(map[string]*rate.Limiter)
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

func (l *ipRateLimiter) stop() {
	close(l.done)
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitMiddleware rejects with 429 once a source IP exceeds its bucket.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.allow(ip) {
			metricRateLimited.Inc()
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
