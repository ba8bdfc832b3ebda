package localcommand

import (
	"syscall"
	"time"
)

type Options struct {
	CloseSignal  int `hcl:"close_signal" flagName:"close-signal" flagSName:"" flagDescribe:"Signal sent to the command process when webshell closes the session (default: SIGHUP)" default:"1"`
	CloseTimeout int `hcl:"close_timeout" flagName:"close-timeout" flagSName:"" flagDescribe:"Time in seconds to wait for the process to exit after the close signal, before sending SIGKILL (default: 10)" default:"10"`
}

// Option alters a LocalCommand at spawn time.
type Option func(*LocalCommand)

// WithCloseSignal sets the signal sent to the child when the session
// is closed.
func WithCloseSignal(signal syscall.Signal) Option {
	return func(lcmd *LocalCommand) {
		lcmd.closeSignal = signal
	}
}

// WithCloseTimeout bounds the wait for the child to exit after the
// close signal. On timeout the child is killed forcefully.
func WithCloseTimeout(timeout time.Duration) Option {
	return func(lcmd *LocalCommand) {
		lcmd.closeTimeout = timeout
	}
}
