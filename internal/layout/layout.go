// Package layout resolves the deterministic on-disk paths the supervisor
// and its clients agree on: the state root, each application's directory,
// and the well-known filenames within it.
package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edirooss/crescentd/internal/crescenterr"
)

const dirPerm = 0o755

// StateRoot returns $HOME/.crescent, creating it if absent.
func StateRoot() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("HOME is not set")
	}
	root := filepath.Join(home, ".crescent")
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return "", fmt.Errorf("create state root: %w", err)
	}
	return root, nil
}

// AppsDir returns <state_root>/apps, creating it if absent.
func AppsDir() (string, error) {
	root, err := StateRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, "apps")
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create apps dir: %w", err)
	}
	return dir, nil
}

// AppDir returns <state_root>/apps/<name>. It does not create it; use
// EnsureAppDir for that.
func AppDir(name string) (string, error) {
	apps, err := AppsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(apps, name), nil
}

// EnsureAppDir creates <state_root>/apps/<name> if absent and returns it.
func EnsureAppDir(name string) (string, error) {
	dir, err := AppDir(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create app dir: %w", err)
	}
	return dir, nil
}

// CheckAppExists fails with ErrApplicationNotFound when app_dir(name) is
// absent.
func CheckAppExists(name string) error {
	dir, err := AppDir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", name, crescenterr.ErrApplicationNotFound)
		}
		return err
	}
	return nil
}

// SocketPath returns <state_root>/apps/<name>/<name>.sock.
func SocketPath(name string) (string, error) {
	dir, err := AppDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".sock"), nil
}

// PIDPath returns <state_root>/apps/<name>/<name>.pid.
func PIDPath(name string) (string, error) {
	dir, err := AppDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".pid"), nil
}

// LogPath returns <state_root>/apps/<name>/<name>.log.
func LogPath(name string) (string, error) {
	dir, err := AppDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".log"), nil
}
