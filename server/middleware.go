package server

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	maxFailedAttempts   = 5
	baseLockoutDuration = 30 * time.Second
	maxLockoutDuration  = 24 * time.Hour
	globalFailureWindow = 5 * time.Minute
	globalFailureLimit  = 50
	globalLockoutTime   = 10 * time.Minute

	// attemptRetention bounds how long an unlocked entry keeps its
	// failure history. Without it the per-IP map grows without bound
	// under failed attempts from many addresses.
	attemptRetention = time.Hour

	cleanupInterval = 10 * time.Minute
)

type attemptInfo struct {
	failCount   int
	lockedUntil time.Time
	lastAttempt time.Time
}

// rateLimiter throttles failed Basic Authentication attempts, per IP
// with exponential backoff and globally across all clients. Each
// Server owns one; see Server.authLimiter.
type rateLimiter struct {
	mu                sync.Mutex
	attempts          map[string]*attemptInfo
	globalFailures    []time.Time
	globalLockedUntil time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		attempts:       make(map[string]*attemptInfo),
		globalFailures: make([]time.Time, 0),
	}
}

func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	rl.globalFailures = append(rl.globalFailures, now)
	rl.pruneGlobalFailuresLocked(now)
	if len(rl.globalFailures) >= globalFailureLimit {
		rl.globalLockedUntil = now.Add(globalLockoutTime)
	}

	info, exists := rl.attempts[ip]
	if !exists {
		info = &attemptInfo{}
		rl.attempts[ip] = info
	}
	info.failCount++
	info.lastAttempt = now

	if info.failCount >= maxFailedAttempts {
		lockout := baseLockoutDuration << uint(info.failCount-maxFailedAttempts)
		if lockout > maxLockoutDuration || lockout <= 0 {
			lockout = maxLockoutDuration
		}
		info.lockedUntil = now.Add(lockout)
	}
}

func (rl *rateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if info, exists := rl.attempts[ip]; exists {
		info.failCount = 0
		info.lockedUntil = time.Time{}
	}
}

// checkLocked reports whether requests from ip are currently rejected,
// the time remaining, and whether the lock is per-IP or global.
func (rl *rateLimiter) checkLocked(ip string) (bool, time.Duration, string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	if rl.globalLockedUntil.After(now) {
		return true, rl.globalLockedUntil.Sub(now), "global"
	}

	if info, exists := rl.attempts[ip]; exists && info.lockedUntil.After(now) {
		return true, info.lockedUntil.Sub(now), "ip"
	}

	return false, 0, ""
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, info := range rl.attempts {
		if info.lockedUntil.After(now) {
			continue
		}
		if info.failCount == 0 || now.Sub(info.lastAttempt) > attemptRetention {
			delete(rl.attempts, ip)
		}
	}
	rl.pruneGlobalFailuresLocked(now)
}

// runCleanup prunes stale entries periodically until ctx is canceled.
func (rl *rateLimiter) runCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *rateLimiter) pruneGlobalFailures(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.pruneGlobalFailuresLocked(now)
}

func (rl *rateLimiter) pruneGlobalFailuresLocked(now time.Time) {
	cutoff := now.Add(-globalFailureWindow)
	kept := rl.globalFailures[:0]
	for _, t := range rl.globalFailures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.globalFailures = kept
}

func (server *Server) wrapLogger(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &logResponseWriter{ResponseWriter: w, status: 200}
		handler.ServeHTTP(rw, r)
		log.Printf("%s %d %s %s", r.RemoteAddr, rw.status, r.Method, r.URL.Path)
	})
}

func (server *Server) wrapHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// todo add version
		w.Header().Set("Server", "WebShell")
		handler.ServeHTTP(w, r)
	})
}

func (server *Server) wrapBasicAuth(handler http.Handler, credential string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRequest(r)

		if locked, remaining, lockType := server.authLimiter.checkLocked(ip); locked {
			w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
			log.Printf("Rejected auth attempt from locked source (%s): %s", lockType, ip)
			http.Error(w, "Too many failed authentication attempts", http.StatusTooManyRequests)
			return
		}

		token := strings.SplitN(r.Header.Get("Authorization"), " ", 2)

		if len(token) != 2 || strings.ToLower(token[0]) != "basic" {
			w.Header().Set("WWW-Authenticate", `Basic realm="webshell"`)
			http.Error(w, "Bad Request", http.StatusUnauthorized)
			return
		}

		payload, err := base64.StdEncoding.DecodeString(token[1])
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if subtle.ConstantTimeCompare(payload, []byte(credential)) != 1 {
			server.authLimiter.recordFailure(ip)
			w.Header().Set("WWW-Authenticate", `Basic realm="webshell"`)
			http.Error(w, "authorization failed", http.StatusUnauthorized)
			return
		}

		server.authLimiter.recordSuccess(ip)
		log.Printf("Basic Authentication Succeeded: url: %s, ip: %s", r.URL, ip)
		handler.ServeHTTP(w, r)
	})
}
