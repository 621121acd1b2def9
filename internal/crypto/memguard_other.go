//go:build !linux && !darwin

package crypto

// No mlock equivalent wired up on this platform.
func LockMemory(b []byte) error   { return nil }
func UnlockMemory(b []byte) error { return nil }
