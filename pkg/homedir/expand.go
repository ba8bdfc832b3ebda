// Package homedir expands leading tildes in file paths.
package homedir

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Expand replaces a leading "~" with the current user's home
// directory. Paths without one are returned unchanged.
func Expand(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home := os.Getenv("HOME")
	if home == "" {
		current, err := user.Current()
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve home directory")
		}
		home = current.HomeDir
	}

	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
