package server

import (
	"net/http/httptest"
	"testing"
)

func TestNewWebTransportServer(t *testing.T) {
	wts, err := NewWebTransportServer(&Options{Address: "127.0.0.1", Port: "8443"})
	if err != nil {
		t.Fatalf("NewWebTransportServer() error: %v", err)
	}
	if wts.server.H3.Addr != "127.0.0.1:8443" {
		t.Errorf("H3.Addr = %q, want 127.0.0.1:8443", wts.server.H3.Addr)
	}
}

func TestNewWebTransportServerInvalidOrigin(t *testing.T) {
	_, err := NewWebTransportServer(&Options{WSOrigin: "[invalid"})
	if err == nil {
		t.Error("NewWebTransportServer() should fail with an invalid origin pattern")
	}
}

func TestWebTransportServerOriginPolicy(t *testing.T) {
	wts, err := NewWebTransportServer(&Options{WSOrigin: `https://allowed\.example\.com`})
	if err != nil {
		t.Fatalf("NewWebTransportServer() error: %v", err)
	}

	req := httptest.NewRequest("CONNECT", "https://allowed.example.com/wt", nil)
	req.Header.Set("Origin", "https://allowed.example.com")
	if !wts.server.CheckOrigin(req) {
		t.Error("allowed origin was rejected")
	}

	req.Header.Set("Origin", "https://evil.example.com")
	if wts.server.CheckOrigin(req) {
		t.Error("disallowed origin was accepted")
	}
}

func TestWebTransportServerDefaultsToSameOrigin(t *testing.T) {
	wts, err := NewWebTransportServer(&Options{})
	if err != nil {
		t.Fatalf("NewWebTransportServer() error: %v", err)
	}

	req := httptest.NewRequest("CONNECT", "https://host.example.com/wt", nil)
	req.Host = "host.example.com"
	req.Header.Set("Origin", "https://host.example.com")
	if !wts.server.CheckOrigin(req) {
		t.Error("same-origin request was rejected")
	}

	req.Header.Set("Origin", "https://other.example.com")
	if wts.server.CheckOrigin(req) {
		t.Error("cross-origin request was accepted")
	}
}
