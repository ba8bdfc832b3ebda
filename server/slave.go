package server

import (
	"webshell/bridge"
)

// Slave is a shell endpoint the server attaches to a client connection,
// either a local PTY-backed process or a remote SSH channel.
type Slave interface {
	bridge.Slave
}

// Factory creates slaves for new client connections.
type Factory interface {
	Name() string
	New(params map[string][]string, headers map[string][]string) (Slave, error)
}

// DeferredFactory is implemented by backends that cannot create a slave
// at connection time because they need per-session parameters from the
// client first, such as an SSH host and credential.
type DeferredFactory interface {
	Factory
	Deferred() bool
}
