package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

type fixedWindowLimiter struct {
	mu       sync.Mutex
	win      time.Duration
	max      int
	buckets  map[string]*bucket
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newFixedWindowLimiter(max int, window time.Duration) *fixedWindowLimiter {
	l := &fixedWindowLimiter{
		win:     window,
		max:     max,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *fixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || now.After(b.resetAt) {
		b = &bucket{count: 0, resetAt: now.Add(l.win)}
		l.buckets[key] = b
	}
	b.count++
	if b.count <= l.max {
		return true, 0
	}
	return false, time.Until(b.resetAt)
}

func (l *fixedWindowLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *fixedWindowLimiter) cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *fixedWindowLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// withRateLimit throttles credential endpoints per client IP.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, wait := s.loginLimiter.Allow(clientIP(r))
		if !ok {
			w.Header().Set("retry-after", retryAfterSeconds(wait))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
		next(w, r)
	}
}

func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.Itoa(int(d.Seconds()))
}
