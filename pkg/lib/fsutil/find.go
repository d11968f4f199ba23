package fsutil

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by FindUpward when no ancestor holds the file.
var ErrNotFound = errors.New("not found in any parent directory")

// FindUpward looks for name in dir and then in each of its ancestors, and
// returns the first path that exists.
func FindUpward(dir, name string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "could not resolve %s", dir)
	}

	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "could not stat %s", candidate)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Wrapf(ErrNotFound, "%s", name)
		}
		dir = parent
	}
}
