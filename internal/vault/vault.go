package vault

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gpdir16/LocalKeys/internal/audit"
	cr "github.com/gpdir16/LocalKeys/internal/crypto"
	"github.com/gpdir16/LocalKeys/internal/storage"
)

const (
	// SaltFile holds the hex-encoded vault salt, plaintext.
	SaltFile = "salt"

	// DocumentFile holds the encrypted document: IV || tag || ciphertext.
	DocumentFile = "vault.enc"

	// DefaultDebounce is how long rapid mutations are batched before the
	// document is flushed to disk.
	DefaultDebounce = time.Second
)

// LockState describes the vault state machine.
type LockState int

const (
	StateUninitialized LockState = iota
	StateLocked
	StateUnlocked
)

func (s LockState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// unlocked carries the master key and decrypted document together, so a key
// without a document (or vice versa) is unrepresentable.
type unlocked struct {
	key []byte
	doc *Document
}

// Vault owns the salt and encrypted document files exclusively; no other
// component reads or writes them. The master key lives only inside the
// unlocked payload and is zeroed on lock.
type Vault struct {
	mu       sync.Mutex
	store    storage.Store
	log      *audit.Log
	debounce time.Duration

	session *unlocked // nil while locked or uninitialized
	dirty   bool
	timer   *time.Timer
}

func New(store storage.Store, log *audit.Log) *Vault {
	return NewWithDebounce(store, log, DefaultDebounce)
}

func NewWithDebounce(store storage.Store, log *audit.Log, debounce time.Duration) *Vault {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Vault{store: store, log: log, debounce: debounce}
}

// Exists reports whether both the salt and the encrypted document are on
// disk. Partial state (one file without the other) does not count.
func (v *Vault) Exists() bool {
	return v.store.Exists(SaltFile) && v.store.Exists(DocumentFile)
}

// State returns the current lock state.
func (v *Vault) State() LockState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Vault) stateLocked() LockState {
	if v.session != nil {
		return StateUnlocked
	}
	if v.Exists() {
		return StateLocked
	}
	return StateUninitialized
}

// Setup creates a new vault: fresh salt, key derived from the password, an
// empty document, then persists salt and document. If the document write
// fails the salt is removed again so a half-initialized vault never
// satisfies Exists. Leaves the vault unlocked.
func (v *Vault) Setup(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.Exists() {
		return ErrAlreadyExists
	}

	salt, err := cr.GenerateSalt()
	if err != nil {
		return err
	}
	if err := v.store.Write(SaltFile, []byte(cr.EncodeSalt(salt))); err != nil {
		return err
	}

	key := cr.DeriveKey([]byte(password), salt)
	_ = cr.LockMemory(key)

	doc := newDocument(time.Now().UTC())
	if err := v.persist(key, doc); err != nil {
		_ = v.store.Remove(SaltFile)
		v.dropKey(key)
		return err
	}

	v.session = &unlocked{key: key, doc: doc}
	v.audit(audit.CategoryLock, "vault created and unlocked")
	return nil
}

// Unlock derives the key from the stored salt and decrypts the document.
// Every decryption failure surfaces as ErrInvalidPassword with the derived
// key discarded; wrong password and corrupt blob are indistinguishable.
func (v *Vault) Unlock(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session != nil {
		return nil
	}
	if !v.Exists() {
		return ErrNotFound
	}

	saltHex, err := v.store.Read(SaltFile)
	if err != nil {
		return err
	}
	salt, err := cr.DecodeSalt(string(saltHex))
	if err != nil {
		return ErrInvalidPassword
	}

	key := cr.DeriveKey([]byte(password), salt)
	_ = cr.LockMemory(key)

	blob, err := v.store.Read(DocumentFile)
	if err != nil {
		v.dropKey(key)
		return err
	}

	plaintext, err := cr.Decrypt(blob, key)
	if err != nil {
		v.dropKey(key)
		v.audit(audit.CategoryLock, "unlock failed")
		return ErrInvalidPassword
	}

	var doc Document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		cr.Zero(plaintext)
		v.dropKey(key)
		return ErrInvalidPassword
	}
	cr.Zero(plaintext)
	if doc.Projects == nil {
		doc.Projects = map[string]*Project{}
	}

	v.session = &unlocked{key: key, doc: &doc}
	v.audit(audit.CategoryLock, "vault unlocked")
	return nil
}

// Lock flushes any pending document state synchronously, then discards the
// master key and document. Calling it while already locked is a no-op.
func (v *Vault) Lock() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil {
		return nil
	}

	flushErr := v.flushLocked()

	v.dropKey(v.session.key)
	v.session = nil
	v.audit(audit.CategoryLock, "vault locked")
	return flushErr
}

// SaveNow cancels any pending debounced flush and persists synchronously.
func (v *Vault) SaveNow() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrLocked
	}
	return v.flushLocked()
}

// flushLocked persists the document if dirty and cancels the pending timer.
// Caller holds v.mu.
func (v *Vault) flushLocked() error {
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	if !v.dirty {
		return nil
	}
	if err := v.persist(v.session.key, v.session.doc); err != nil {
		return err
	}
	v.dirty = false
	return nil
}

// scheduleSave marks the document dirty and arms the debounce timer if one
// is not already pending, so rapid mutations coalesce into one write.
// Caller holds v.mu.
func (v *Vault) scheduleSave() {
	v.dirty = true
	if v.timer != nil {
		return
	}
	v.timer = time.AfterFunc(v.debounce, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.timer = nil
		if v.session == nil || !v.dirty {
			return
		}
		if err := v.persist(v.session.key, v.session.doc); err != nil {
			v.audit(audit.CategoryApp, fmt.Sprintf("debounced save failed: %v", err))
			return
		}
		v.dirty = false
	})
}

func (v *Vault) persist(key []byte, doc *Document) error {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	blob, err := cr.Encrypt(plaintext, key)
	cr.Zero(plaintext)
	if err != nil {
		return err
	}
	return v.store.Write(DocumentFile, blob)
}

func (v *Vault) dropKey(key []byte) {
	cr.Zero(key)
	_ = cr.UnlockMemory(key)
}

func (v *Vault) audit(cat audit.Category, msg string) {
	if v.log != nil {
		_ = v.log.Append(cat, msg)
	}
}
