//go:build !linux && !darwin

package platform

// No rlimit equivalent wired up on this platform.
func DisableCoreDumps() error { return nil }
