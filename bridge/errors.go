package bridge

import "github.com/pkg/errors"

var (
	// ErrSlaveClosed indicates the slave terminated, e.g. the child
	// process exited or the SSH channel was torn down.
	ErrSlaveClosed = errors.New("slave closed")

	// ErrMasterClosed indicates the client went away.
	ErrMasterClosed = errors.New("master closed")

	// ErrConnectFailed indicates a pending session failed to
	// establish its slave. The failure reason has already been
	// reported to the client when this is returned.
	ErrConnectFailed = errors.New("connect failed")
)
