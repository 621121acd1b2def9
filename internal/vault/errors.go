package vault

import "errors"

var (
	// ErrAlreadyExists indicates setup was attempted on an existing vault.
	ErrAlreadyExists = errors.New("vault already exists")

	// ErrNotFound indicates the vault, a project, or a secret is absent.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a project with that name already exists.
	ErrDuplicate = errors.New("project already exists")

	// ErrInvalidPassword indicates unlock failed. Deliberately generic:
	// callers cannot tell a wrong password from a corrupt document.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrLocked indicates the operation requires an unlocked vault.
	ErrLocked = errors.New("vault is locked")
)
