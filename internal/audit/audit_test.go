package audit

import (
	"strings"
	"testing"

	"github.com/gpdir16/LocalKeys/internal/storage"
)

func TestMaskPasswordMarker(t *testing.T) {
	got := Mask("unlock failed password=mysecret123 from cli")
	if strings.Contains(got, "mysecret123") {
		t.Fatalf("masked message still contains the password: %q", got)
	}
	if !strings.Contains(got, "password=***") {
		t.Fatalf("expected password value replaced, got %q", got)
	}

	got = Mask("token: abc123def from request")
	if strings.Contains(got, "abc123def") {
		t.Fatalf("masked message still contains the token: %q", got)
	}
}

func TestMaskAPIKeyShape(t *testing.T) {
	key := "sk-abcdefghijklmnopqrstuv0123"
	got := Mask("stored value " + key + " for myapp")
	if strings.Contains(got, key) {
		t.Fatalf("masked message still contains the key: %q", got)
	}
	if !strings.Contains(got, "sk-a") {
		t.Fatalf("expected first 4 chars retained, got %q", got)
	}
}

func TestMaskLongAlphanumericRun(t *testing.T) {
	run := strings.Repeat("Z", 2) + strings.Repeat("a1", 19) // 40 chars
	got := Mask("saw " + run + " in request")
	if strings.Contains(got, run) {
		t.Fatalf("masked message still contains the run: %q", got)
	}
	if !strings.Contains(got, run[:4]+strings.Repeat("*", 36)) {
		t.Fatalf("expected first 4 chars then asterisks, got %q", got)
	}
}

func TestMaskLeavesOrdinaryTextAlone(t *testing.T) {
	msg := "project myapp created with 3 secrets"
	if got := Mask(msg); got != msg {
		t.Fatalf("Mask(%q) = %q", msg, got)
	}
}

func TestAppendMasksAndPersists(t *testing.T) {
	store := storage.NewMemStore()
	l := New(store, 100)

	if err := l.Append(CategoryAccess, "read with token=supersecretvalue"); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if strings.Contains(entries[0].Message, "supersecretvalue") {
		t.Fatalf("persisted entry contains the raw token: %q", entries[0].Message)
	}
	if entries[0].Category != CategoryAccess {
		t.Fatalf("category = %q", entries[0].Category)
	}
	if !store.Exists(LogFile) {
		t.Fatalf("audit document not persisted")
	}
}

func TestFIFOEviction(t *testing.T) {
	store := storage.NewMemStore()
	l := New(store, 5)

	for _, msg := range []string{"e0", "e1", "e2", "e3", "e4", "e5", "e6"} {
		if err := l.Append(CategoryApp, msg); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	entries := l.Entries()
	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(entries))
	}
	if entries[0].Message != "e2" || entries[4].Message != "e6" {
		t.Fatalf("expected oldest-first eviction, got %q .. %q", entries[0].Message, entries[4].Message)
	}
}

func TestVerifyChain(t *testing.T) {
	store := storage.NewMemStore()
	l := New(store, 10)
	_ = l.Append(CategoryLock, "vault unlocked")
	_ = l.Append(CategoryLock, "vault locked")
	_ = l.Append(CategoryApp, "server started")

	if err := l.Verify(); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestCorruptLogTreatedAsEmpty(t *testing.T) {
	store := storage.NewMemStore()
	_ = store.Write(LogFile, []byte("{not json"))

	l := New(store, 10)
	if got := l.Entries(); len(got) != 0 {
		t.Fatalf("corrupt log should read as empty, got %d entries", len(got))
	}
	if err := l.Append(CategoryApp, "fresh start"); err != nil {
		t.Fatalf("Append over corrupt log error: %v", err)
	}
	if entries := l.Entries(); len(entries) != 1 || entries[0].Message != "fresh start" {
		t.Fatalf("unexpected entries after overwrite: %+v", entries)
	}
}
