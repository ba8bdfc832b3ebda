package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/NYTimes/gziphandler"
	"github.com/pkg/errors"

	"webshell/bridge"
	"webshell/pkg/randomstring"
)

var webProtocols = []string{"webtty"}

const (
	sessionIDLength    = 16
	maxInitMessageSize = 4096
)

// InitMessage is the first message a client sends after the transport
// is established, before any terminal traffic.
type InitMessage struct {
	Arguments string `json:"Arguments,omitempty"`
	AuthToken string `json:"AuthToken,omitempty"`
}

func (server *Server) setupHandlers(ctx context.Context, cancel context.CancelFunc, pathPrefix string, counter *counter) http.Handler {
	siteMux := http.NewServeMux()
	siteMux.HandleFunc(pathPrefix, server.handleIndex)
	siteMux.HandleFunc(pathPrefix+"manifest.webmanifest", server.handleManifest)
	siteMux.HandleFunc(pathPrefix+"auth_token.js", server.handleAuthToken)
	siteMux.HandleFunc(pathPrefix+"config.js", server.handleConfig)
	siteMux.HandleFunc(pathPrefix+"sessions", server.handleSessions)

	siteHandler := http.Handler(siteMux)

	if server.basicAuthEnabled() {
		log.Printf("Using Basic Authentication")
		siteHandler = server.wrapBasicAuth(siteHandler, server.options.Credential)
	}

	withGz := gziphandler.GzipHandler(siteHandler)
	siteHandler = server.wrapHeaders(withGz)

	wsMux := http.NewServeMux()
	wsMux.Handle("/", siteHandler)
	wsMux.HandleFunc(pathPrefix+"ws", server.generateHandleWS(ctx, cancel, counter))
	if server.options.EnableWebTransport {
		wsMux.HandleFunc(pathPrefix+"wt", server.generateHandleWT(ctx, cancel, counter))
	}

	return server.wrapLogger(wsMux)
}

func (server *Server) generateHandleWS(ctx context.Context, cancel context.CancelFunc, counter *counter) http.HandlerFunc {
	once := new(int64)

	go func() {
		select {
		case <-counter.timer().C:
			cancel()
		case <-ctx.Done():
		}
	}()

	return func(w http.ResponseWriter, r *http.Request) {
		if server.options.Once {
			success := atomic.CompareAndSwapInt64(once, 0, 1)
			if !success {
				http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
				return
			}
		}

		num := counter.add(1)
		closeReason := "unknown reason"

		defer func() {
			num := counter.done()
			log.Printf(
				"Connection closed by %s: %s, connections: %d/%d",
				closeReason, r.RemoteAddr, num, server.options.MaxConnection,
			)

			if server.options.Once {
				cancel()
			}
		}()

		if server.options.MaxConnection != 0 {
			if num > server.options.MaxConnection {
				closeReason = "exceeding max number of connections"
				return
			}
		}

		log.Printf("New client connected: %s, connections: %d/%d", r.RemoteAddr, num, server.options.MaxConnection)

		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		conn, err := server.upgrader.Upgrade(w, r, nil)
		if err != nil {
			closeReason = err.Error()
			return
		}
		defer conn.Close()

		transport := &wsTransport{Conn: conn}
		err = server.processTransport(ctx, transport, r)
		closeReason = describeSessionEnd(ctx, err)
	}
}

func (server *Server) generateHandleWT(ctx context.Context, cancel context.CancelFunc, counter *counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if server.wtServer == nil {
			http.Error(w, "WebTransport is not enabled", http.StatusNotFound)
			return
		}

		num := counter.add(1)
		closeReason := "unknown reason"

		defer func() {
			num := counter.done()
			log.Printf(
				"Connection closed by %s: %s, connections: %d/%d",
				closeReason, r.RemoteAddr, num, server.options.MaxConnection,
			)
		}()

		if server.options.MaxConnection != 0 {
			if num > server.options.MaxConnection {
				closeReason = "exceeding max number of connections"
				return
			}
		}

		session, err := server.wtServer.Upgrade(w, r)
		if err != nil {
			closeReason = err.Error()
			return
		}

		stream, err := session.AcceptStream(ctx)
		if err != nil {
			closeReason = err.Error()
			session.CloseWithError(0, "no stream")
			return
		}

		log.Printf("New WebTransport client connected: %s, connections: %d/%d", r.RemoteAddr, num, server.options.MaxConnection)

		transport := newWTTransport(session, stream)
		defer transport.Close()

		err = server.processTransport(ctx, transport, r)
		closeReason = describeSessionEnd(ctx, err)
	}
}

func describeSessionEnd(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "normal exit"
	case ctx.Err() == context.Canceled:
		return "cancelation"
	case errors.Cause(err) == bridge.ErrMasterClosed:
		return "client"
	case errors.Cause(err) == bridge.ErrSlaveClosed:
		return "shell endpoint closed"
	default:
		return err.Error()
	}
}

// processTransport authenticates the init message and then hands the
// transport over to a bridge session until it ends.
func (server *Server) processTransport(ctx context.Context, transport Transport, r *http.Request) error {
	buf := make([]byte, maxInitMessageSize)
	n, err := transport.Read(buf)
	if err != nil {
		return errors.Wrapf(err, "failed to read the init message")
	}

	var init InitMessage
	if err := json.Unmarshal(buf[:n], &init); err != nil {
		return errors.Wrapf(err, "failed to parse the init message")
	}

	if !server.validateAuthToken(init.AuthToken, ipFromAddr(transport.RemoteAddr())) {
		return errors.New("failed to authenticate the connection")
	}

	queryPath := "?"
	if server.options.PermitArguments && init.Arguments != "" {
		queryPath = init.Arguments
	}
	params, err := queryValues(queryPath)
	if err != nil {
		return errors.Wrapf(err, "failed to parse arguments")
	}

	opts := []bridge.Option{
		bridge.WithRegistry(server.registry, randomstring.Generate(sessionIDLength)),
	}
	if server.options.PermitWrite {
		opts = append(opts, bridge.WithPermitWrite())
	}

	var session *bridge.Bridge
	if server.factoryDeferred() {
		session, err = bridge.NewPending(transport, server.connectFunc(params, r.Header), opts...)
		if err != nil {
			return errors.Wrapf(err, "failed to create the session")
		}
	} else {
		slave, err := server.factory.New(params, r.Header)
		if err != nil {
			bridge.SendError(transport, err.Error())
			return errors.Wrapf(err, "failed to create the backend")
		}
		// PTY output goes out as raw binary frames; only deferred
		// sessions wrap output in JSON envelopes.
		opts = append(opts, bridge.WithRawOutput())
		session, err = bridge.New(transport, slave, opts...)
		if err != nil {
			slave.Close()
			return errors.Wrapf(err, "failed to create the session")
		}
	}

	return session.Run(ctx)
}

// factoryDeferred reports whether the backend needs per-session connect
// parameters from the client before it can create a slave.
func (server *Server) factoryDeferred() bool {
	deferred, ok := server.factory.(DeferredFactory)
	return ok && deferred.Deferred()
}

// connectFunc adapts the factory to the bridge's deferred-connect hook,
// merging client-supplied connect parameters with URL arguments.
func (server *Server) connectFunc(params url.Values, headers http.Header) bridge.ConnectFunc {
	return func(p bridge.ConnectParams) (bridge.Slave, error) {
		merged := url.Values{}
		for key, values := range params {
			merged[key] = values
		}
		if p.Host != "" {
			merged.Set("host", p.Host)
		}
		if p.Port != 0 {
			merged.Set("port", fmt.Sprintf("%d", p.Port))
		}
		if p.Username != "" {
			merged.Set("username", p.Username)
		}
		if p.Credential != "" {
			merged.Set("credential", p.Credential)
		}
		return server.factory.New(merged, headers)
	}
}

func (server *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	vars, err := server.indexVariables(r)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	indexBuf := new(bytes.Buffer)
	err = server.indexTemplate.Execute(indexBuf, vars)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Write(indexBuf.Bytes())
}

func (server *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	vars, err := server.indexVariables(r)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	manifestBuf := new(bytes.Buffer)
	err = server.manifestTemplate.Execute(manifestBuf, vars)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/manifest+json")
	w.Write(manifestBuf.Bytes())
}

func (server *Server) indexVariables(r *http.Request) (map[string]interface{}, error) {
	titleVars := server.titleVariables(
		[]string{"server", "master"},
		map[string]map[string]interface{}{
			"server": server.options.TitleVariables,
			"master": {
				"remote_addr": clientIPFromRequest(r),
			},
		},
	)

	titleBuf := new(bytes.Buffer)
	err := server.titleTemplate.Execute(titleBuf, titleVars)
	if err != nil {
		return nil, err
	}

	indexVars := map[string]interface{}{
		"title": titleBuf.String(),
	}
	return indexVars, nil
}

// titleVariables merges maps in order, a name in order without a
// corresponding map is a programming error.
func (server *Server) titleVariables(order []string, varUnits map[string]map[string]interface{}) map[string]interface{} {
	titleVars := map[string]interface{}{}

	for _, name := range order {
		vars, ok := varUnits[name]
		if !ok {
			panic("title variable name `" + name + "` has not been registered")
		}
		for key, val := range vars {
			titleVars[key] = val
		}
	}

	return titleVars
}

func (server *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")

	token := server.issueAuthToken(r)
	if token == "" {
		token = server.options.Credential
	}
	w.Write([]byte("var gotty_auth_token = '" + token + "';"))
}

func (server *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")

	cfg := new(bytes.Buffer)
	fmt.Fprintf(cfg, "var gotty_term = 'xterm';\n")
	fmt.Fprintf(cfg, "var gotty_ws_query_args = '%s';\n", server.options.WSQueryArgs)
	fmt.Fprintf(cfg, "var gotty_webtransport_enabled = %t;\n", server.options.EnableWebTransport)
	fmt.Fprintf(cfg, "var gotty_connect_required = %t;\n", server.factoryDeferred())
	fmt.Fprintf(cfg, "var gotty_reconnect_enabled = %t;\n", server.options.EnableReconnect)
	fmt.Fprintf(cfg, "var gotty_reconnect_time = %d;\n", server.options.ReconnectTime)
	fmt.Fprintf(cfg, "var gotty_webgl_enabled = %t;\n", server.options.EnableWebGL)
	w.Write(cfg.Bytes())
}

type sessionInfo struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// handleSessions lists live sessions and lets an operator terminate
// one by ID.
func (server *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids := server.registry.IDs()
		sessions := make([]sessionInfo, 0, len(ids))
		for _, id := range ids {
			session, ok := server.registry.Lookup(id)
			if !ok {
				continue
			}
			sessions = append(sessions, sessionInfo{ID: id, State: session.State().String()})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessions)

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		session, ok := server.registry.Lookup(id)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		session.Stop()
		log.Printf("Session %s terminated by operator request from %s", id, r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
