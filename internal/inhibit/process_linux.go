//go:build linux

package inhibit

import "syscall"

// sysProcAttr makes the kernel SIGTERM the child when the daemon dies, so a
// crashed daemon never leaves a lock behind.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
