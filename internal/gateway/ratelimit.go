package gateway

import (
	"net"
	"sync"
	"time"
)

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter counts failed handshakes per remote host inside a sliding
// window.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time)}
}

// run prunes stale hosts every minute until stop is closed.
func (l *authRateLimiter) run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *authRateLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-authRateWindow)
	for host := range l.failures {
		l.compact(host, cutoff)
	}
}

// compact drops expired failures for host and returns how many remain.
// Callers hold l.mu.
func (l *authRateLimiter) compact(host string, cutoff time.Time) int {
	recent := l.failures[host]
	kept := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return 0
	}
	l.failures[host] = kept
	return len(kept)
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := hostOf(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.compact(host, time.Now().Add(-authRateWindow)) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, tracked := l.failures[host]; !tracked && len(l.failures) >= authRateMaxIPs {
		l.evictOldest()
	}
	l.failures[host] = append(l.failures[host], time.Now())
}

func (l *authRateLimiter) evictOldest() {
	var oldestHost string
	var oldest time.Time
	for host, times := range l.failures {
		if len(times) > 0 && (oldestHost == "" || times[0].Before(oldest)) {
			oldestHost, oldest = host, times[0]
		}
	}
	if oldestHost != "" {
		delete(l.failures, oldestHost)
	}
}

func hostOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}
