// Package localcommand provides the local shell backend: a command
// spawned on a pseudo-terminal, exposed as a session slave.
package localcommand

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/errors"
)

const (
	DefaultCloseSignal  = syscall.SIGHUP
	DefaultCloseTimeout = 10 * time.Second
)

// LocalCommand is a child process attached to the slave side of a PTY.
// Reads and writes go through the retained master side.
type LocalCommand struct {
	command string
	argv    []string

	closeSignal  syscall.Signal
	closeTimeout time.Duration

	cmd       *exec.Cmd
	pty       *os.File
	ptyClosed chan struct{}
}

// New spawns command with argv attached to a fresh PTY. The returned
// LocalCommand owns both the child process and the PTY master; Close
// releases them exactly once.
func New(command string, argv []string, options ...Option) (*LocalCommand, error) {
	cmd := exec.Command(command, argv...)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start command `%s`", command)
	}
	ptyClosed := make(chan struct{})

	lcmd := &LocalCommand{
		command: command,
		argv:    argv,

		closeSignal:  DefaultCloseSignal,
		closeTimeout: DefaultCloseTimeout,

		cmd:       cmd,
		pty:       ptmx,
		ptyClosed: ptyClosed,
	}

	for _, option := range options {
		option(lcmd)
	}

	// When the child exits the PTY master is closed, which unblocks
	// any pending Read with an error and marks the slave dead.
	go func() {
		defer func() {
			lcmd.pty.Close()
			close(lcmd.ptyClosed)
		}()

		lcmd.cmd.Wait()
	}()

	return lcmd, nil
}

func (lcmd *LocalCommand) Read(p []byte) (n int, err error) {
	return lcmd.pty.Read(p)
}

func (lcmd *LocalCommand) Write(p []byte) (n int, err error) {
	return lcmd.pty.Write(p)
}

// Close terminates the child and releases the PTY. It sends the
// configured close signal, waits up to the close timeout for the child
// to exit, and escalates to SIGKILL when the wait expires. Calling
// Close on an already closed command is a no-op.
func (lcmd *LocalCommand) Close() error {
	select {
	case <-lcmd.ptyClosed:
		return nil
	default:
	}

	if lcmd.cmd != nil && lcmd.cmd.Process != nil {
		lcmd.cmd.Process.Signal(lcmd.closeSignal)
	}
	for {
		select {
		case <-lcmd.ptyClosed:
			return nil
		case <-lcmd.closeTimeoutC():
			lcmd.cmd.Process.Signal(syscall.SIGKILL)
		}
	}
}

func (lcmd *LocalCommand) WindowTitleVariables() map[string]interface{} {
	return map[string]interface{}{
		"command": lcmd.command,
		"argv":    lcmd.argv,
		"pid":     lcmd.cmd.Process.Pid,
	}
}

// ResizeTerminal sets the PTY window size so terminal-aware programs
// in the child see the new dimensions immediately.
func (lcmd *LocalCommand) ResizeTerminal(columns int, rows int) error {
	select {
	case <-lcmd.ptyClosed:
		// Already closed; resizing a dead PTY is not an error.
		return nil
	default:
	}
	window := pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(columns),
	}
	return pty.Setsize(lcmd.pty, &window)
}

func (lcmd *LocalCommand) closeTimeoutC() <-chan time.Time {
	if lcmd.closeTimeout >= 0 {
		return time.After(lcmd.closeTimeout)
	}

	return make(chan time.Time)
}
