package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalBackendGetMissing(t *testing.T) {
	b := NewLocalBackend(t.TempDir(), testLogger())

	path, err := b.Get("requests-2.31.0.tar.gz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if path != "" {
		t.Fatalf("expected absent result, got %q", path)
	}
}

func TestLocalBackendPutThenGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "binaries")
	b := NewLocalBackend(dir, testLogger())

	if err := b.Put("requests-2.31.0.tar.gz", bytes.NewReader([]byte("archive bytes"))); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	path, err := b.Get("requests-2.31.0.tar.gz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if path != filepath.Join(dir, "requests-2.31.0.tar.gz") {
		t.Fatalf("path mismatch: got %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(got) != "archive bytes" {
		t.Fatalf("content mismatch: got %q", string(got))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read cache dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the cached file, got %d entries", len(entries))
	}
}

func TestLocalBackendGetIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "requests-2.31.0.tar.gz"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	b := NewLocalBackend(dir, testLogger())

	path, err := b.Get("requests-2.31.0.tar.gz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if path != "" {
		t.Fatalf("expected absent result for directory, got %q", path)
	}
}

func TestLocalBackendRejectsInvalidFilename(t *testing.T) {
	b := NewLocalBackend(t.TempDir(), testLogger())

	if _, err := b.Get("../escape"); err == nil || !strings.Contains(err.Error(), "invalid archive filename") {
		t.Fatalf("expected filename error from get, got: %v", err)
	}
	if err := b.Put("../escape", bytes.NewReader(nil)); err == nil || !strings.Contains(err.Error(), "invalid archive filename") {
		t.Fatalf("expected filename error from put, got: %v", err)
	}
}
