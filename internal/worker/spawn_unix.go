//go:build !windows

package worker

import "syscall"

// detachedProcAttr puts the daemon in its own session so it survives
// the parent CLI exiting and never receives its terminal signals.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
