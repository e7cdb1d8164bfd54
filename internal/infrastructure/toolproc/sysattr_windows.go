//go:build windows

package toolproc

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func applySysProcAttr(cmd *exec.Cmd) {}

// signalGroup approximates Unix signaling on Windows: any real signal is a
// hard kill, and the liveness probe (signal 0) reports the process gone so
// the escalation loop ends after the initial kill.
func signalGroup(pid int, sig syscall.Signal) error {
	if sig == 0 {
		return errors.New("liveness probe unsupported on windows")
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
