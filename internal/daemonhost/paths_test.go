package daemonhost

import (
	"path/filepath"
	"testing"
)

func TestRuntimeDirHonorsXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	dir := RuntimeDir()
	if dir != filepath.Join("/run/user/1000", "pwsp") {
		t.Fatalf("RuntimeDir() = %q, want .../pwsp", dir)
	}
}

func TestLockAndSockPathsAreSiblingsOfRuntimeDir(t *testing.T) {
	dir := "/tmp/pwsp-test"
	if got, want := LockPath(dir), filepath.Join(dir, "daemon.lock"); got != want {
		t.Fatalf("LockPath() = %q, want %q", got, want)
	}
	if got, want := SockPath(dir), filepath.Join(dir, "daemon.sock"); got != want {
		t.Fatalf("SockPath() = %q, want %q", got, want)
	}
}
