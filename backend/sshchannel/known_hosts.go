package sshchannel

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"webshell/pkg/homedir"
)

// hostKeyCallback builds the verification policy from the options.
// Without a known hosts file every host key is accepted blindly. With
// one, known keys are verified; unknown hosts are either rejected
// (strict) or accepted and appended to the file for next time.
func hostKeyCallback(options *Options) (ssh.HostKeyCallback, error) {
	if options.KnownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path, err := homedir.Expand(options.KnownHostsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand known hosts path `%s`", options.KnownHostsFile)
	}
	if err := ensureFile(path); err != nil {
		return nil, errors.Wrapf(err, "failed to create known hosts file `%s`", path)
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load known hosts file `%s`", path)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			// Host not in the file. A mismatching key (Want
			// non-empty) is always rejected above.
			if options.StrictHostKey {
				return err
			}
			return appendKnownHost(path, hostname, key)
		}
		return err
	}, nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

func appendKnownHost(path string, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
