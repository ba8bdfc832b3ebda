package server

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthTokenStoreIssueAndValidate(t *testing.T) {
	store := newAuthTokenStore(time.Minute)

	token := store.issue("")
	if len(token) != authTokenLength {
		t.Errorf("token length = %d, want %d", len(token), authTokenLength)
	}

	if !store.validate(token, "") {
		t.Error("freshly issued token should validate")
	}
	if store.validate("unknown", "") {
		t.Error("unknown token should not validate")
	}
	if store.validate("", "") {
		t.Error("empty token should not validate")
	}
}

func TestAuthTokenStoreExpiry(t *testing.T) {
	store := newAuthTokenStore(-time.Second)

	token := store.issue("")
	if store.validate(token, "") {
		t.Error("expired token should not validate")
	}
	if _, exists := store.tokens[token]; exists {
		t.Error("expired token should be pruned")
	}
}

func TestAuthTokenStoreIPBinding(t *testing.T) {
	store := newAuthTokenStore(time.Minute)

	token := store.issue("192.0.2.1")

	if !store.validate(token, "192.0.2.1") {
		t.Error("token should validate from its issuing IP")
	}
	if store.validate(token, "192.0.2.2") {
		t.Error("token should not validate from another IP")
	}
	// Unbound lookups skip the IP check.
	if !store.validate(token, "") {
		t.Error("token should validate when no IP is supplied")
	}
}

func TestIssueAndValidateAuthToken(t *testing.T) {
	server := &Server{
		options: &Options{
			EnableBasicAuth: true,
			AuthIPBinding:   true,
		},
		authTokens: newAuthTokenStore(time.Minute),
	}

	req := httptest.NewRequest("GET", "/auth_token.js", nil)
	req.RemoteAddr = "192.0.2.1:44444"

	token := server.issueAuthToken(req)
	if token == "" {
		t.Fatal("issueAuthToken() returned empty token")
	}

	if !server.validateAuthToken(token, "192.0.2.1") {
		t.Error("token should validate from the issuing IP")
	}
	if server.validateAuthToken(token, "198.51.100.7") {
		t.Error("token should not validate from another IP")
	}
}

func TestValidateAuthTokenDisabled(t *testing.T) {
	server := &Server{options: &Options{}}

	if !server.validateAuthToken("", "") {
		t.Error("validation should pass when basic auth is disabled")
	}
}

func TestIssueAuthTokenDisabled(t *testing.T) {
	server := &Server{options: &Options{}}

	if token := server.issueAuthToken(httptest.NewRequest("GET", "/", nil)); token != "" {
		t.Errorf("issueAuthToken() = %q, want empty without basic auth", token)
	}
}

func TestClientIPFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:12345"

	if got := clientIPFromRequest(req); got != "192.0.2.1" {
		t.Errorf("clientIPFromRequest() = %q, want 192.0.2.1", got)
	}

	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	if got := clientIPFromRequest(req); got != "10.0.0.1" {
		t.Errorf("clientIPFromRequest() = %q, want first forwarded IP", got)
	}

	if got := clientIPFromRequest(nil); got != "" {
		t.Errorf("clientIPFromRequest(nil) = %q, want empty", got)
	}
}

func TestIPFromAddr(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.0.2.1:12345", "192.0.2.1"},
		{"[::1]:8080", "::1"},
		{"192.0.2.1", "192.0.2.1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ipFromAddr(tt.addr); got != tt.want {
			t.Errorf("ipFromAddr(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestValidateAuthTokenNoAuth(t *testing.T) {
	server := &Server{
		options: &Options{
			EnableBasicAuth: true,
			NoAuth:          true,
		},
		authTokens: newAuthTokenStore(time.Minute),
	}

	if !server.validateAuthToken("", "") {
		t.Error("tokens should not be required when authentication is disabled")
	}
	if token := server.issueAuthToken(httptest.NewRequest("GET", "/auth_token.js", nil)); token != "" {
		t.Errorf("issueAuthToken() = %q, want empty when authentication is disabled", token)
	}
}
