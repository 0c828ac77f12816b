package daemonhost

import (
	"os"
	"path/filepath"
	"strconv"
)

// RuntimeDir returns the directory the daemon keeps its lock file and
// Unix socket in: $XDG_RUNTIME_DIR/pwsp if set, otherwise a per-uid
// fallback under os.TempDir() (matching how most PipeWire/desktop tooling
// degrades on a system with no runtime dir configured, e.g. inside a
// container).
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pwsp")
	}
	return filepath.Join(os.TempDir(), "pwsp-"+strconv.Itoa(os.Getuid()))
}

// LockPath returns the path to the daemon's exclusive advisory lock.
func LockPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "daemon.lock")
}

// SockPath returns the path to the daemon's control socket.
func SockPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, "daemon.sock")
}
