package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// sameOrigin is the default upgrade origin policy: requests without an
// Origin header (non-browser clients) pass, browser requests must come
// from the page this server served.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	reqHost, reqPort := splitHostPort(r.Host)
	if !strings.EqualFold(originURL.Hostname(), reqHost) {
		return false
	}

	// Ports are compared only when both sides carry one; a bare origin
	// host matches whatever port the request arrived on.
	originPort := originURL.Port()
	if originPort == "" || reqPort == "" {
		return true
	}
	return originPort == reqPort
}

func splitHostPort(hostport string) (host, port string) {
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		return h, p
	}
	return hostport, ""
}
