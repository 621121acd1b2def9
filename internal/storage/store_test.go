package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	if fs.Exists("vault.enc") {
		t.Fatalf("Exists true before write")
	}
	if _, err := fs.Read("vault.enc"); err != ErrNotFound {
		t.Fatalf("Read missing: err = %v, want ErrNotFound", err)
	}

	data := []byte{0x01, 0x02, 0x03}
	if err := fs.Write("vault.enc", data); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, err := fs.Read("vault.enc")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Read = %v, want %v", got, data)
	}
	if !fs.Exists("vault.enc") {
		t.Fatalf("Exists false after write")
	}

	if err := fs.Remove("vault.enc"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if err := fs.Remove("vault.enc"); err != nil {
		t.Fatalf("Remove of missing file should be a no-op, got %v", err)
	}
}

func TestFileStoreOwnerOnlyPermissions(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewFileStore(dir)
	if err := fs.Write("salt", []byte("aa")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "salt"))
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("perm = %o, want 0600", perm)
	}
}

func TestFileStoreOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewFileStore(dir)
	_ = fs.Write("vault.enc", []byte("one"))
	_ = fs.Write("vault.enc", []byte("two"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "vault.enc" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
	got, _ := fs.Read("vault.enc")
	if string(got) != "two" {
		t.Fatalf("Read = %q, want %q", got, "two")
	}
}

func TestDiscoveryRecordLifecycle(t *testing.T) {
	s := NewMemStore()
	rec := DiscoveryRecord{Host: "127.0.0.1", Port: 43123, AuthToken: "tok", PID: 99}

	if err := WriteDiscovery(s, rec); err != nil {
		t.Fatalf("WriteDiscovery error: %v", err)
	}
	got, err := ReadDiscovery(s)
	if err != nil {
		t.Fatalf("ReadDiscovery error: %v", err)
	}
	if got != rec {
		t.Fatalf("ReadDiscovery = %+v, want %+v", got, rec)
	}

	if err := RemoveDiscovery(s); err != nil {
		t.Fatalf("RemoveDiscovery error: %v", err)
	}
	if _, err := ReadDiscovery(s); err != ErrNotFound {
		t.Fatalf("ReadDiscovery after remove: err = %v, want ErrNotFound", err)
	}
}
