//go:build linux || darwin

package crypto

import "golang.org/x/sys/unix"

// LockMemory pins a buffer holding key material so it cannot be swapped to
// disk. Failure is non-fatal; callers treat it as best effort.
func LockMemory(b []byte) error { return unix.Mlock(b) }

// UnlockMemory releases a buffer previously pinned with LockMemory.
func UnlockMemory(b []byte) error { return unix.Munlock(b) }
