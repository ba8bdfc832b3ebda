package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"html/template"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	texttemplate "text/template"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"webshell/bridge"
	"webshell/pkg/homedir"
	"webshell/pkg/randomstring"
)

// Server provides the HTTP surface of the application: it serves the
// terminal page and bridges WebSocket and WebTransport connections to
// slaves created by its factory.
type Server struct {
	factory Factory
	options *Options

	upgrader         *websocket.Upgrader
	indexTemplate    *template.Template
	titleTemplate    *texttemplate.Template
	manifestTemplate *template.Template
	authTokens       *authTokenStore
	authLimiter      *rateLimiter
	registry         *bridge.Registry
	wtServer         *WebTransportServer
}

// New creates a new instance of Server.
// Server will use the New() of the factory provided as it creates
// a new slave for each new client connection.
func New(factory Factory, options *Options) (*Server, error) {
	indexData := indexHTML
	if options.IndexFile != "" {
		path, err := homedir.Expand(options.IndexFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to expand index file path `%s`", options.IndexFile)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read custom index file at `%s`", path)
		}
		indexData = string(data)
	}

	indexTemplate, err := template.New("index").Parse(indexData)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse index template")
	}

	titleTemplate, err := texttemplate.New("title").Parse(options.TitleFormat)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse window title format `%s`", options.TitleFormat)
	}

	manifestTemplate, err := template.New("manifest").Parse(manifestJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest template")
	}

	var originChecker func(r *http.Request) bool
	if options.WSOrigin != "" {
		matcher, err := regexp.Compile(options.WSOrigin)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compile websocket origin pattern `%s`", options.WSOrigin)
		}
		originChecker = func(r *http.Request) bool {
			return matcher.MatchString(r.Header.Get("Origin"))
		}
	} else {
		originChecker = sameOrigin
	}

	var authTokens *authTokenStore
	if options.EnableBasicAuth {
		authTokens = newAuthTokenStore(authTokenTTL)
	}

	return &Server{
		factory: factory,
		options: options,

		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    webProtocols,
			CheckOrigin:     originChecker,
		},
		indexTemplate:    indexTemplate,
		titleTemplate:    titleTemplate,
		manifestTemplate: manifestTemplate,
		authTokens:       authTokens,
		authLimiter:      newRateLimiter(),
		registry:         bridge.NewRegistry(),
	}, nil
}

// basicAuthEnabled reports whether requests must carry a Basic
// Authentication credential. NoAuth turns authentication off even when
// a credential is configured.
func (server *Server) basicAuthEnabled() bool {
	return server.options.EnableBasicAuth && !server.options.NoAuth
}

// Run starts the main process of the Server.
// The cancelation of ctx will shutdown the server immediately with aborting
// existing client connections. A RunOption by WithGracefullContext()
// can be provided to do a gracefull shutdown instead.
func (server *Server) Run(ctx context.Context, options ...RunOption) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := &RunOptions{}
	for _, opt := range options {
		opt(opts)
	}

	counter := newCounter(time.Duration(server.options.Timeout) * time.Second)

	if server.basicAuthEnabled() {
		go server.authLimiter.runCleanup(cctx, cleanupInterval)
	}

	path := "/"
	if server.options.Path != "" {
		path = server.options.Path
	}
	if server.options.EnableRandomUrl {
		path = "/" + randomstring.Generate(server.options.RandomUrlLength) + "/"
	}

	handlers := server.setupHandlers(cctx, cancel, path, counter)
	srv, err := server.setupHTTPServer(handlers)
	if err != nil {
		return errors.Wrapf(err, "failed to setup an HTTP server")
	}

	if server.options.PermitWrite {
		log.Printf("Permitting clients to write input to the PTY.")
	}
	if server.options.Once {
		log.Printf("Once option is provided, accepting only one client")
	}

	if server.options.Port == "0" {
		log.Printf("Port number configured to `0`, choosing a random port to listen")
	}
	hostPort := net.JoinHostPort(server.options.Address, server.options.Port)
	listener, err := net.Listen("tcp", hostPort)
	if err != nil {
		return errors.Wrapf(err, "failed to listen at `%s`", hostPort)
	}

	scheme := "http"
	if server.options.EnableTLS {
		scheme = "https"
	}
	host, port, _ := net.SplitHostPort(listener.Addr().String())
	log.Printf("HTTP server is listening at: %s", scheme+"://"+host+":"+port+path)
	if server.options.Address == "0.0.0.0" {
		for _, address := range listAddresses() {
			log.Printf("Alternative URL: %s", scheme+"://"+address+":"+port+path)
		}
	}

	srvErr := make(chan error, 1)
	go func() {
		if server.options.EnableTLS {
			crtFile, err := homedir.Expand(server.options.TLSCrtFile)
			if err != nil {
				srvErr <- errors.Wrapf(err, "failed to expand `%s`", server.options.TLSCrtFile)
				return
			}
			keyFile, err := homedir.Expand(server.options.TLSKeyFile)
			if err != nil {
				srvErr <- errors.Wrapf(err, "failed to expand `%s`", server.options.TLSKeyFile)
				return
			}
			log.Printf("TLS crt file: %s", crtFile)
			log.Printf("TLS key file: %s", keyFile)

			srvErr <- srv.ServeTLS(listener, crtFile, keyFile)
		} else {
			srvErr <- srv.Serve(listener)
		}
	}()

	if server.options.EnableWebTransport {
		wtServer, err := NewWebTransportServer(server.options)
		if err != nil {
			srv.Close()
			return errors.Wrapf(err, "failed to setup the WebTransport server")
		}
		server.wtServer = wtServer
		crtFile, _ := homedir.Expand(server.options.TLSCrtFile)
		keyFile, _ := homedir.Expand(server.options.TLSKeyFile)
		go func() {
			if err := wtServer.ListenAndServeTLS(cctx, crtFile, keyFile, handlers); err != nil && err != context.Canceled {
				log.Printf("WebTransport server stopped: %v", err)
			}
		}()
	}

	if opts.gracefullCtx != nil {
		go func() {
			select {
			case <-opts.gracefullCtx.Done():
				srv.Shutdown(context.Background())
			case <-cctx.Done():
			}
		}()
	}

	select {
	case err = <-srvErr:
		if err == http.ErrServerClosed { // by gracefull ctx
			err = nil
		} else {
			cancel()
		}
	case <-cctx.Done():
		srv.Close()
		err = cctx.Err()
	case <-counter.timer().C:
		srv.Close()
		err = errors.New("timeout")
	}

	if server.wtServer != nil {
		server.wtServer.Close()
	}

	conn := counter.count()
	if conn > 0 {
		log.Printf("Waiting for %d connections to be closed", conn)
	}
	counter.wait()

	log.Printf("Server terminated")

	return err
}

func (server *Server) setupHTTPServer(handler http.Handler) (*http.Server, error) {
	srv := &http.Server{
		Handler: handler,
	}

	if server.options.EnableTLSClientAuth {
		tlsConfig, err := server.tlsConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to setup TLS configuration")
		}
		srv.TLSConfig = tlsConfig
	}

	return srv, nil
}

func (server *Server) tlsConfig() (*tls.Config, error) {
	caFile, err := homedir.Expand(server.options.TLSCACrtFile)
	if err != nil {
		return nil, errors.New("failed to expand the CA certificate file path")
	}
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, errors.New("could not open CA crt file " + caFile)
	}
	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("could not parse CA crt file data in " + caFile)
	}
	return &tls.Config{
		ClientCAs:  caCertPool,
		ClientAuth: tls.RequireAndVerifyClientCert,
	}, nil
}

func queryValues(query string) (url.Values, error) {
	parsed, err := url.Parse(query)
	if err != nil {
		return nil, err
	}
	return parsed.Query(), nil
}
