package server

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"regexp"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// WebTransportServer accepts WebTransport sessions over HTTP/3 on the
// same host and port as the TCP listener, UDP side.
type WebTransportServer struct {
	server  *webtransport.Server
	options *Options
}

// NewWebTransportServer creates a WebTransport server with the same
// origin policy as the WebSocket upgrader: same-origin by default, a
// WSOrigin regex when configured.
func NewWebTransportServer(options *Options) (*WebTransportServer, error) {
	checkOrigin := sameOrigin
	if options.WSOrigin != "" {
		matcher, err := regexp.Compile(options.WSOrigin)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compile origin pattern `%s`", options.WSOrigin)
		}
		checkOrigin = func(r *http.Request) bool {
			return matcher.MatchString(r.Header.Get("Origin"))
		}
	}

	return &WebTransportServer{
		server: &webtransport.Server{
			H3: &http3.Server{
				Addr: net.JoinHostPort(options.Address, options.Port),
			},
			CheckOrigin: checkOrigin,
		},
		options: options,
	}, nil
}

// Upgrade turns an HTTP/3 request into a WebTransport session.
func (wts *WebTransportServer) Upgrade(w http.ResponseWriter, r *http.Request) (*webtransport.Session, error) {
	return wts.server.Upgrade(w, r)
}

// ListenAndServeTLS serves WebTransport until ctx is canceled or the
// listener fails.
func (wts *WebTransportServer) ListenAndServeTLS(ctx context.Context, certFile, keyFile string, handler http.Handler) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return errors.Wrapf(err, "failed to load the TLS certificate pair")
	}

	wts.server.H3.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h3"},
	}
	wts.server.H3.Handler = handler

	log.Printf("WebTransport server is listening at: %s (UDP)", wts.server.H3.Addr)

	errs := make(chan error, 1)
	go func() {
		errs <- wts.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		wts.Close()
		return ctx.Err()
	case err := <-errs:
		return err
	}
}

// Close shuts the WebTransport server down.
func (wts *WebTransportServer) Close() error {
	return wts.server.Close()
}
