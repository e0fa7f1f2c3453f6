//go:build !linux

package inhibit

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
