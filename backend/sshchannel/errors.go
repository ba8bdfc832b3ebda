package sshchannel

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Kind categorizes why establishing an SSH channel failed.
type Kind int

const (
	KindAuthFailed Kind = iota
	KindProtocol
	KindTimeout
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindAuthFailed:
		return "authentication failed"
	case KindProtocol:
		return "protocol error"
	case KindTimeout:
		return "network timeout"
	}
	return "connection failed"
}

// ConnectError is returned when the remote shell could not be
// established. Its message is safe to surface to the client.
type ConnectError struct {
	Kind Kind
	Err  error
}

func (e *ConnectError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// connectError wraps err with a kind derived from its shape.
func connectError(err error) *ConnectError {
	return &ConnectError{Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	// x/crypto/ssh reports failures as opaque strings; match the
	// stable prefixes it uses.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "permission denied"):
		return KindAuthFailed
	case strings.Contains(msg, "ssh: handshake failed"),
		strings.Contains(msg, "ssh: "):
		return KindProtocol
	}
	return KindOther
}
