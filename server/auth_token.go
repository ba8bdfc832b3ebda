package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"webshell/pkg/randomstring"
)

const authTokenLength = 32
const authTokenTTL = 1 * time.Hour

// tokenGrant records one issued token: when it stops being valid and,
// when IP binding is on, the only client allowed to redeem it.
type tokenGrant struct {
	expiresAt time.Time
	ip        string
}

// authTokenStore issues and validates the short-lived tokens the page
// hands to its WebSocket connection, so the basic auth credential never
// travels over the socket itself.
type authTokenStore struct {
	mu     sync.Mutex
	tokens map[string]tokenGrant
	ttl    time.Duration
}

func newAuthTokenStore(ttl time.Duration) *authTokenStore {
	return &authTokenStore{
		tokens: make(map[string]tokenGrant),
		ttl:    ttl,
	}
}

// issue mints a fresh token bound to ip. An empty ip issues an unbound
// token.
func (store *authTokenStore) issue(ip string) string {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := time.Now()
	store.pruneLocked(now)

	token := randomstring.Generate(authTokenLength)
	for store.contains(token) {
		token = randomstring.Generate(authTokenLength)
	}
	store.tokens[token] = tokenGrant{
		expiresAt: now.Add(store.ttl),
		ip:        ip,
	}
	return token
}

// validate reports whether token is live. A non-empty ip must match the
// grant's binding; unbound grants accept any ip.
func (store *authTokenStore) validate(token string, ip string) bool {
	if token == "" {
		return false
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	now := time.Now()
	store.pruneLocked(now)

	grant, ok := store.tokens[token]
	switch {
	case !ok:
		return false
	case now.After(grant.expiresAt):
		delete(store.tokens, token)
		return false
	case grant.ip != "" && ip != "" && grant.ip != ip:
		return false
	}
	return true
}

func (store *authTokenStore) contains(token string) bool {
	_, exists := store.tokens[token]
	return exists
}

func (store *authTokenStore) pruneLocked(now time.Time) {
	for token, grant := range store.tokens {
		if now.After(grant.expiresAt) {
			delete(store.tokens, token)
		}
	}
}

// clientIPFromRequest resolves the client address, preferring the first
// entry of X-Forwarded-For when a proxy sits in front.
func clientIPFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip := strings.Split(forwarded, ",")[0]
		return strings.TrimSpace(ip)
	}

	return ipFromAddr(r.RemoteAddr)
}

// ipFromAddr strips the port from a host:port address. Addresses that
// carry no port are returned as-is.
func ipFromAddr(addr string) string {
	if addr == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return strings.TrimSpace(addr)
}

func (server *Server) issueAuthToken(r *http.Request) string {
	if !server.basicAuthEnabled() || server.authTokens == nil {
		return ""
	}

	if !server.options.AuthIPBinding {
		return server.authTokens.issue("")
	}

	return server.authTokens.issue(clientIPFromRequest(r))
}

func (server *Server) validateAuthToken(token string, ip string) bool {
	if !server.basicAuthEnabled() {
		return true
	}
	if server.authTokens == nil {
		return false
	}

	if !server.options.AuthIPBinding {
		return server.authTokens.validate(token, "")
	}

	return server.authTokens.validate(token, ip)
}
