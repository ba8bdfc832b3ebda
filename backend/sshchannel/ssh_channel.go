// Package sshchannel provides the remote shell backend: an interactive
// shell on an SSH server, exposed as a session slave.
//
// Connections authenticate with a password (falling back to
// keyboard-interactive servers that prompt for one). Host keys are
// accepted and remembered by default, which trades trust for
// convenience; a known hosts file with strict checking can be
// configured instead.
package sshchannel

import (
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

const (
	DefaultTerm        = "xterm-256color"
	DefaultDialTimeout = 10 * time.Second

	// Initial PTY size; the client follows up with a resize message
	// as soon as it knows its real dimensions.
	initialColumns = 80
	initialRows    = 24
)

// SSHChannel is an interactive shell session on a remote SSH server.
type SSHChannel struct {
	host     string
	port     int
	username string

	term            string
	dialTimeout     time.Duration
	hostKeyCallback ssh.HostKeyCallback

	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	closeOnce sync.Once
	closeErr  error
}

// New connects to host:port, authenticates as username with
// credential, and starts a login shell on a PTY-backed session.
// Failures are returned as *ConnectError with a client-safe message.
func New(host string, port int, username string, credential string, options ...Option) (*SSHChannel, error) {
	if host == "" {
		return nil, &ConnectError{Kind: KindOther, Err: errors.New("no host given")}
	}
	if username == "" {
		return nil, &ConnectError{Kind: KindOther, Err: errors.New("no username given")}
	}
	if port <= 0 {
		port = 22
	}

	channel := &SSHChannel{
		host:     host,
		port:     port,
		username: username,

		term:            DefaultTerm,
		dialTimeout:     DefaultDialTimeout,
		hostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	for _, option := range options {
		option(channel)
	}

	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(credential),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = credential
				}
				return answers, nil
			}),
		},
		HostKeyCallback: channel.hostKeyCallback,
		Timeout:         channel.dialTimeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, connectError(err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, connectError(err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(channel.term, initialRows, initialColumns, modes); err != nil {
		session.Close()
		client.Close()
		return nil, connectError(err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, connectError(err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, connectError(err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, connectError(err)
	}

	channel.client = client
	channel.session = session
	channel.stdin = stdin
	channel.stdout = stdout
	return channel, nil
}

func (channel *SSHChannel) Read(p []byte) (n int, err error) {
	return channel.stdout.Read(p)
}

func (channel *SSHChannel) Write(p []byte) (n int, err error) {
	return channel.stdin.Write(p)
}

// ResizeTerminal propagates new dimensions to the remote PTY.
func (channel *SSHChannel) ResizeTerminal(columns int, rows int) error {
	return channel.session.WindowChange(rows, columns)
}

func (channel *SSHChannel) WindowTitleVariables() map[string]interface{} {
	return map[string]interface{}{
		"command":  "ssh",
		"host":     channel.host,
		"username": channel.username,
	}
}

// Close tears down the shell session and the underlying connection.
// Safe to call multiple times; only the first call does anything.
func (channel *SSHChannel) Close() error {
	channel.closeOnce.Do(func() {
		if channel.session != nil {
			if err := channel.session.Close(); err != nil && err != io.EOF {
				channel.closeErr = err
			}
		}
		if channel.client != nil {
			if err := channel.client.Close(); err != nil && channel.closeErr == nil {
				channel.closeErr = err
			}
		}
	})
	return channel.closeErr
}
