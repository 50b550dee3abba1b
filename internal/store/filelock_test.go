package store

import (
	"testing"
	"time"
)

func TestNewFileLock(t *testing.T) {
	tmpDir := t.TempDir()

	lock, err := NewFileLock(tmpDir, nil)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	if !lock.IsLocked() {
		t.Error("Expected lock to be held")
	}

	lock.Unlock()

	if lock.IsLocked() {
		t.Error("Expected lock to be released after Unlock()")
	}
}

func TestFileLockExcludesSecondHolder(t *testing.T) {
	tmpDir := t.TempDir()

	first, err := NewFileLock(tmpDir, shortLockConfig(200*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer first.Unlock()

	if _, err := NewFileLock(tmpDir, shortLockConfig(100*time.Millisecond)); err == nil {
		t.Fatal("Second holder should have been refused")
	}
}

func TestFileLockDoubleUnlock(t *testing.T) {
	tmpDir := t.TempDir()

	lock, err := NewFileLock(tmpDir, nil)
	if err != nil {
		t.Fatal(err)
	}

	lock.Unlock()
	lock.Unlock() // must not panic
}
