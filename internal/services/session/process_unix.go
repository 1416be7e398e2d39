//go:build !windows

package session

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureProcess puts the child in its own process group so the whole
// tree (renderer, GPU and extension host helpers) can be signalled at once
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcessTree(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGTERM)
}

func killProcessTree(cmd *exec.Cmd) error {
	if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return errors.New("process not started")
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
