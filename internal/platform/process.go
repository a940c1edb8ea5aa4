package platform

import (
	"golang.org/x/sys/unix"
)

// ProcessExists answers "does a process with this PID still exist?" via
// kill(pid, 0), the portable existence probe. ESRCH
// means gone; EPERM means it exists but is owned by another user — still
// alive from the registry's point of view, since the node file's lock
// state (not process ownership) is the authority on liveness.
func ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}

// CurrentPID returns the calling process's PID, used to stamp new
// NodeIds.
func CurrentPID() int {
	return unix.Getpid()
}
