// Package filex holds small filesystem helpers for the CLI tools.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// userConfigDir is a seam for tests.
var userConfigDir = os.UserConfigDir

// EnsureSubDir creates parent/name with owner-only permissions if it does
// not exist and returns its path.
func EnsureSubDir(parent, name string) (string, error) {
	dir := filepath.Join(parent, name)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// EnsureConfigDir is EnsureSubDir under the user's config directory
// ($XDG_CONFIG_HOME, ~/Library/Application Support, %AppData%).
func EnsureConfigDir(name string) (string, error) {
	base, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return EnsureSubDir(base, name)
}
