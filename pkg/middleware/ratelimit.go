package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/peiffer1998/EIPR-Portal-sub001/pkg/encoding"
)

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address without the port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientLimiter tracks a rate limiter and its last access time
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client key with automatic cleanup of idle clients
type RateLimiter struct {
	limiters        map[string]*clientLimiter
	mu              sync.Mutex
	rate            rate.Limit
	burst           int
	maxSize         int
	cleanupInterval time.Duration
	keyFunc         KeyFunc
	logger          *zap.Logger
	now             func() time.Time
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond with the given burst
// per key, and starts its cleanup goroutine. A nil keyFunc keys by client IP.
func NewRateLimiter(requestsPerSecond float64, burst int, keyFunc KeyFunc, logger *zap.Logger) *RateLimiter {
	rl := newRateLimiter(requestsPerSecond, burst, keyFunc, logger)
	go rl.cleanupLoop()
	return rl
}

func newRateLimiter(requestsPerSecond float64, burst int, keyFunc KeyFunc, logger *zap.Logger) *RateLimiter {
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limiters:        make(map[string]*clientLimiter),
		rate:            rate.Limit(requestsPerSecond),
		burst:           burst,
		maxSize:         10000,
		cleanupInterval: 5 * time.Minute,
		keyFunc:         keyFunc,
		logger:          logger,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes clients idle for longer than the cleanup interval
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cleanupInterval)
	removed := 0
	for key, l := range rl.limiters {
		if l.lastAccess.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}

	if removed > 100 {
		rl.logger.Debug("Rate limiter cleanup",
			zap.Int("removed", removed),
			zap.Int("remaining", len(rl.limiters)))
	}
	return removed
}

// Shutdown stops the cleanup goroutine
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if l, ok := rl.limiters[key]; ok {
		l.lastAccess = now
		return l.limiter
	}

	if len(rl.limiters) >= rl.maxSize {
		rl.evictOldest()
	}

	l := &clientLimiter{
		limiter:    rate.NewLimiter(rl.rate, rl.burst),
		lastAccess: now,
	}
	rl.limiters[key] = l
	return l.limiter
}

// evictOldest drops the least recently used client. Caller holds mu.
func (rl *RateLimiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, l := range rl.limiters {
		if first || l.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = l.lastAccess
			first = false
		}
	}
	if oldestKey != "" {
		delete(rl.limiters, oldestKey)
	}
}

// Middleware returns HTTP middleware that rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.keyFunc(r)

		if !rl.getLimiter(key).AllowN(rl.now(), 1) {
			retryAfter := 1
			if rl.rate > 0 && float64(rl.rate) < 1 {
				retryAfter = int(1/float64(rl.rate)) + 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", r.URL.Path))
			_ = encoding.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"code":    "RATE_LIMITED",
				"message": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
