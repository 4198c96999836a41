package barcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFS_ImplementsStore(t *testing.T) {
	var _ Store = (*LocalFS)(nil)
}

func TestLocalFS_Contract(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	exerciseStore(t, fs)
}

func TestLocalFS_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)

	path := filepath.Join(dir, "yahoo", "bad.json")
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("garbage"), 0644)

	if _, _, err := fs.Load(context.Background(), "yahoo/bad.json"); err == nil {
		t.Error("expected decode error for corrupt entry")
	}
}

func TestLocalFS_RequiresPath(t *testing.T) {
	if _, err := NewLocalFS(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestLocalFS_DeleteMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	if err := fs.Delete(context.Background(), "missing.json"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}
