package sshchannel

import (
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"webshell/server"
)

type Factory struct {
	options *Options
	hostKey ssh.HostKeyCallback
}

func NewFactory(options *Options) (*Factory, error) {
	hostKey, err := hostKeyCallback(options)
	if err != nil {
		return nil, err
	}

	return &Factory{
		options: options,
		hostKey: hostKey,
	}, nil
}

func (factory *Factory) Name() string {
	return "ssh channel"
}

// Deferred marks the factory as needing per-session connect parameters
// from the client before a slave can exist.
func (factory *Factory) Deferred() bool {
	return true
}

func (factory *Factory) New(params map[string][]string, headers map[string][]string) (server.Slave, error) {
	host := firstParam(params, "host", factory.options.DefaultHost)
	username := firstParam(params, "username", factory.options.DefaultUsername)
	credential := firstParam(params, "credential", "")

	port := factory.options.DefaultPort
	if raw := firstParam(params, "port", ""); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			port = parsed
		}
	}

	term := factory.options.Term
	if term == "" {
		term = DefaultTerm
	}
	dialTimeout := time.Duration(factory.options.DialTimeout) * time.Second
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	return New(host, port, username, credential,
		WithTerm(term),
		WithDialTimeout(dialTimeout),
		WithHostKeyCallback(factory.hostKey),
	)
}

func firstParam(params map[string][]string, key string, fallback string) string {
	if values := params[key]; len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return fallback
}
