//go:build linux || darwin

package platform

import "golang.org/x/sys/unix"

// DisableCoreDumps sets the core-size rlimit to zero so a crash cannot spill
// the decrypted document or master key into a core file.
func DisableCoreDumps() error {
	var rlim unix.Rlimit
	rlim.Cur = 0
	rlim.Max = 0
	return unix.Setrlimit(unix.RLIMIT_CORE, &rlim)
}
