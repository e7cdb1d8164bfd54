//go:build linux

package toolproc

import (
	"os/exec"
	"syscall"
)

// applySysProcAttr isolates the child into its own process group so kill
// escalation reaches the whole tree, and arranges SIGKILL delivery if this
// process dies first.
func applySysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// signalGroup delivers sig to the child's process group.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
