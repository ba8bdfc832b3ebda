package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testServer() *Server {
	return &Server{
		options:     &Options{},
		authLimiter: newRateLimiter(),
	}
}

func TestRateLimiterRecordFailure(t *testing.T) {
	rl := newRateLimiter()
	ip := "192.168.1.1"

	rl.recordFailure(ip)

	if info, exists := rl.attempts[ip]; !exists {
		t.Error("IP should be in attempts map")
	} else if info.failCount != 1 {
		t.Errorf("failCount = %d, want 1", info.failCount)
	}

	for i := 0; i < 4; i++ {
		rl.recordFailure(ip)
	}

	if rl.attempts[ip].failCount != 5 {
		t.Errorf("failCount = %d, want 5", rl.attempts[ip].failCount)
	}

	locked, _, _ := rl.checkLocked(ip)
	if !locked {
		t.Error("IP should be locked after 5 failures")
	}
}

func TestRateLimiterRecordSuccess(t *testing.T) {
	rl := newRateLimiter()
	ip := "192.168.1.1"

	for i := 0; i < 3; i++ {
		rl.recordFailure(ip)
	}
	if rl.attempts[ip].failCount != 3 {
		t.Errorf("failCount = %d, want 3", rl.attempts[ip].failCount)
	}

	rl.recordSuccess(ip)

	if rl.attempts[ip].failCount != 0 {
		t.Errorf("failCount after success = %d, want 0", rl.attempts[ip].failCount)
	}
}

func TestRateLimiterCheckLocked(t *testing.T) {
	rl := newRateLimiter()
	ip := "192.168.1.1"

	locked, _, _ := rl.checkLocked(ip)
	if locked {
		t.Error("IP should not be locked initially")
	}

	rl.attempts[ip] = &attemptInfo{
		failCount:   10,
		lockedUntil: time.Now().Add(time.Hour),
	}

	locked, remaining, lockType := rl.checkLocked(ip)
	if !locked {
		t.Error("IP should be locked")
	}
	if lockType != "ip" {
		t.Errorf("lockType = %s, want 'ip'", lockType)
	}
	if remaining <= 0 {
		t.Error("remaining time should be positive")
	}
}

func TestRateLimiterGlobalLockout(t *testing.T) {
	rl := newRateLimiter()
	rl.globalLockedUntil = time.Now().Add(time.Hour)

	locked, _, lockType := rl.checkLocked("192.168.1.1")
	if !locked {
		t.Error("should be globally locked")
	}
	if lockType != "global" {
		t.Errorf("lockType = %s, want 'global'", lockType)
	}
}

func TestRateLimiterExponentialBackoff(t *testing.T) {
	rl := newRateLimiter()
	ip := "192.168.1.1"

	for i := 0; i < 10; i++ {
		rl.recordFailure(ip)
	}

	locked, duration, _ := rl.checkLocked(ip)
	if !locked {
		t.Error("IP should be locked after 10 failures")
	}
	if duration < time.Minute {
		t.Errorf("duration = %v, should be at least 1 minute for 10 failures", duration)
	}
	if duration > maxLockoutDuration {
		t.Errorf("duration = %v exceeds the cap %v", duration, maxLockoutDuration)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newRateLimiter()

	rl.attempts["10.0.0.1"] = &attemptInfo{
		failCount:   0,
		lockedUntil: time.Now().Add(-time.Hour),
	}
	rl.attempts["10.0.0.2"] = &attemptInfo{
		failCount:   5,
		lockedUntil: time.Now().Add(time.Hour),
	}
	rl.globalFailures = []time.Time{
		time.Now().Add(-10 * time.Minute),
		time.Now().Add(-1 * time.Minute),
	}

	rl.cleanup()

	if _, exists := rl.attempts["10.0.0.1"]; exists {
		t.Error("expired entry should have been cleaned up")
	}
	if _, exists := rl.attempts["10.0.0.2"]; !exists {
		t.Error("locked entry should not have been cleaned up")
	}
	if len(rl.globalFailures) != 1 {
		t.Errorf("globalFailures length = %d, want 1", len(rl.globalFailures))
	}
}

func TestRateLimiterCleanupDropsStaleFailures(t *testing.T) {
	rl := newRateLimiter()

	rl.attempts["10.0.0.3"] = &attemptInfo{
		failCount:   3,
		lastAttempt: time.Now().Add(-2 * attemptRetention),
	}
	rl.attempts["10.0.0.4"] = &attemptInfo{
		failCount:   3,
		lastAttempt: time.Now(),
	}

	rl.cleanup()

	if _, exists := rl.attempts["10.0.0.3"]; exists {
		t.Error("stale failed entry should have been cleaned up")
	}
	if _, exists := rl.attempts["10.0.0.4"]; !exists {
		t.Error("recent failed entry should have been kept")
	}
}

func TestRateLimiterRunCleanup(t *testing.T) {
	rl := newRateLimiter()
	rl.mu.Lock()
	rl.attempts["10.0.0.1"] = &attemptInfo{
		failCount:   0,
		lockedUntil: time.Now().Add(-time.Hour),
	}
	rl.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rl.runCleanup(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rl.mu.Lock()
		_, exists := rl.attempts["10.0.0.1"]
		rl.mu.Unlock()
		if !exists {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("periodic cleanup never pruned the expired entry")
}

func TestRateLimiterPruneGlobalFailures(t *testing.T) {
	rl := newRateLimiter()
	rl.globalFailures = []time.Time{
		time.Now().Add(-10 * time.Minute), // Outside window
		time.Now().Add(-3 * time.Minute),  // Inside window
		time.Now().Add(-1 * time.Minute),  // Inside window
	}

	rl.pruneGlobalFailures(time.Now())

	if len(rl.globalFailures) != 2 {
		t.Errorf("globalFailures length = %d, want 2", len(rl.globalFailures))
	}
}

func TestWrapHeaders(t *testing.T) {
	server := testServer()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := server.wrapHeaders(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Header().Get("Server") != "WebShell" {
		t.Errorf("Server header = %s, want 'WebShell'", rr.Header().Get("Server"))
	}
}

func TestWrapLogger(t *testing.T) {
	server := testServer()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	wrapped := server.wrapLogger(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("Status code = %d, want %d", rr.Code, http.StatusTeapot)
	}
}

func TestWrapBasicAuthValid(t *testing.T) {
	server := testServer()
	credential := "admin:password"

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	wrapped := server.wrapBasicAuth(handler, credential)

	auth := base64.StdEncoding.EncodeToString([]byte(credential))
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic "+auth)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if !handlerCalled {
		t.Error("handler should have been called with valid credentials")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestWrapBasicAuthInvalid(t *testing.T) {
	server := testServer()

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	wrapped := server.wrapBasicAuth(handler, "admin:password")

	auth := base64.StdEncoding.EncodeToString([]byte("wrong:creds"))
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic "+auth)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if handlerCalled {
		t.Error("handler should not have been called with invalid credentials")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestWrapBasicAuthMissingHeader(t *testing.T) {
	server := testServer()

	wrapped := server.wrapBasicAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "admin:password")

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("WWW-Authenticate header should be set")
	}
}

func TestWrapBasicAuthInvalidBase64(t *testing.T) {
	server := testServer()

	wrapped := server.wrapBasicAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "admin:password")

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic not-valid-base64!!!")
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d for invalid base64", rr.Code, http.StatusInternalServerError)
	}
}

func TestWrapBasicAuthLockout(t *testing.T) {
	server := testServer()

	wrapped := server.wrapBasicAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "admin:password")

	server.authLimiter.attempts["192.0.2.1"] = &attemptInfo{
		failCount:   10,
		lockedUntil: time.Now().Add(time.Hour),
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

func TestWrapBasicAuthXForwardedFor(t *testing.T) {
	server := testServer()

	wrapped := server.wrapBasicAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "admin:password")

	server.authLimiter.attempts["10.0.0.1"] = &attemptInfo{
		failCount:   10,
		lockedUntil: time.Now().Add(time.Hour),
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want %d (should use X-Forwarded-For IP)", rr.Code, http.StatusTooManyRequests)
	}
}

func TestWrapBasicAuthGlobalLockout(t *testing.T) {
	server := testServer()
	server.authLimiter.globalLockedUntil = time.Now().Add(time.Hour)

	wrapped := server.wrapBasicAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "admin:password")

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want %d for global lockout", rr.Code, http.StatusTooManyRequests)
	}
}
