package server

import (
	"io"
)

// Transport represents a bidirectional message channel for terminal
// I/O. Both WebSocket and WebTransport implement this interface.
// Write sends a text (control) message; WriteBinary sends a raw
// payload frame for sessions that stream shell output unwrapped.
type Transport interface {
	io.ReadWriter
	WriteBinary(p []byte) (n int, err error)
	Close() error
	RemoteAddr() string
}
