//go:build !linux && !windows

package toolproc

import (
	"os/exec"
	"syscall"
)

// applySysProcAttr is a no-op outside Linux; Pdeathsig and pgid signaling are
// Linux-specific, so other Unixes fall back to single-process signaling.
func applySysProcAttr(cmd *exec.Cmd) {}

// signalGroup signals the child process only.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
