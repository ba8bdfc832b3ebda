package bridge

import "io"

// Master represents the client side of a session: a message-oriented
// bidirectional channel to the browser. Each Read returns one inbound
// message; Write sends one text (control) message. WriteBinary sends a
// raw payload frame, used when the session forwards shell output
// unwrapped.
type Master interface {
	io.ReadWriter
	WriteBinary(p []byte) (n int, err error)
	Close() error
}

// Slave represents the shell side of a session: a live terminal
// endpoint, either a local PTY-attached process or a remote SSH shell
// channel. Read blocks until output is available; Write forwards
// keystrokes. Close must be idempotent.
type Slave interface {
	io.ReadWriter

	// WindowTitleVariables returns any values that can be used to
	// fill the browser window title.
	WindowTitleVariables() map[string]interface{}

	// ResizeTerminal sets the terminal size to the given dimensions.
	ResizeTerminal(columns int, rows int) error

	Close() error
}

// ConnectParams carries the parameters of a client connect request for
// sessions whose slave is established on demand.
type ConnectParams struct {
	Host       string
	Port       int
	Username   string
	Credential string
}

// ConnectFunc establishes a slave from client-supplied connect
// parameters. It is called at most once per session.
type ConnectFunc func(params ConnectParams) (Slave, error)
