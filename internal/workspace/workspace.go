// Package workspace validates engine workspace paths supplied by callers.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ext is the file extension of an engine workspace.
const Ext = ".pqw6"

var (
	// ErrExtension is returned for a path without the workspace extension.
	ErrExtension = errors.New("workspace file must have " + Ext + " extension")

	// ErrNotExist is returned when no regular file exists at the path.
	ErrNotExist = errors.New("workspace file does not exist")
)

// Validate checks that path names an existing workspace file and returns it
// in absolute form.
func Validate(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), Ext) {
		return "", fmt.Errorf("%q: %w", path, ErrExtension)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%q: %w", path, ErrNotExist)
		}
		return "", fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%q is not a regular file: %w", path, ErrNotExist)
	}
	return abs, nil
}
