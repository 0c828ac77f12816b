package lockfile

import (
	"path/filepath"
	"testing"
)

func TestAcquireThenContendedAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Close()

	if _, err := Acquire(path); err != ErrAlreadyRunning {
		t.Fatalf("second Acquire: got %v, want ErrAlreadyRunning", err)
	}
}

func TestAcquireAfterCloseSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Acquire(path)
	if err != nil {
		t.Fatalf("second Acquire after close: %v", err)
	}
	defer second.Close()
}
