package infra

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireLock_RecordsHolderAndExcludesSecondInstance(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	holder, err := ReadLock(dir)
	if err != nil {
		t.Fatalf("ReadLock failed: %v", err)
	}
	if holder.PID != os.Getpid() || holder.StartedAt.IsZero() {
		t.Errorf("unexpected holder %+v", holder)
	}

	_, err = AcquireLock(dir)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if !strings.Contains(err.Error(), "pid") {
		t.Errorf("error should name the holder: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op: %v", err)
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("re-acquire after release failed: %v", err)
	}
	_ = again.Release()
}

func TestAcquireLock_CorruptLockStillExcludes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, lockFileName), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := AcquireLock(dir); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestDataDir_DefaultsUnderWorkspace(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/srv/xdg")
	if _, err := os.Stat("_workspace"); err == nil {
		t.Skip("portable workspace present")
	}
	got := DataDir(DefaultConfig())
	if got != filepath.Join(workspaceDir(), "data") {
		t.Errorf("DataDir = %s", got)
	}
}
