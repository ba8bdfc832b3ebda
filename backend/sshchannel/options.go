package sshchannel

import (
	"time"

	"golang.org/x/crypto/ssh"
)

type Options struct {
	DefaultHost     string `hcl:"default_host" flagName:"ssh-host" flagSName:"" flagDescribe:"Host to connect to when the client omits one" default:""`
	DefaultPort     int    `hcl:"default_port" flagName:"ssh-port" flagSName:"" flagDescribe:"Port to connect to when the client omits one" default:"22"`
	DefaultUsername string `hcl:"default_username" flagName:"ssh-user" flagSName:"" flagDescribe:"Username to authenticate as when the client omits one" default:""`
	Term            string `hcl:"term" flagName:"ssh-term" flagSName:"" flagDescribe:"Terminal type requested for the remote PTY" default:"xterm-256color"`
	DialTimeout     int    `hcl:"dial_timeout" flagName:"ssh-dial-timeout" flagSName:"" flagDescribe:"Time in seconds to wait for the TCP connection and SSH handshake" default:"10"`
	StrictHostKey   bool   `hcl:"strict_host_key" flagName:"ssh-strict-host-key" flagSName:"" flagDescribe:"Reject hosts whose key is not already in the known hosts file" default:"false"`
	KnownHostsFile  string `hcl:"known_hosts_file" flagName:"ssh-known-hosts" flagSName:"" flagDescribe:"Known hosts file for host key verification; empty accepts any host key without remembering it" default:""`
}

// Option alters an SSHChannel at connect time.
type Option func(*SSHChannel)

// WithTerm sets the terminal type requested for the remote PTY.
func WithTerm(term string) Option {
	return func(channel *SSHChannel) {
		channel.term = term
	}
}

// WithDialTimeout bounds the TCP connect and SSH handshake.
func WithDialTimeout(timeout time.Duration) Option {
	return func(channel *SSHChannel) {
		channel.dialTimeout = timeout
	}
}

// WithHostKeyCallback sets the host key verification policy.
func WithHostKeyCallback(callback ssh.HostKeyCallback) Option {
	return func(channel *SSHChannel) {
		channel.hostKeyCallback = callback
	}
}
