package storage

import "errors"

var ErrNotFound = errors.New("storage: file not found")

// Store is the persistence surface for the vault files, the audit log and
// the server discovery record. Names are flat identifiers, not paths.
type Store interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Remove(name string) error
	Exists(name string) bool
}
