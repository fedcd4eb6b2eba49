//go:build linux || darwin

package canopy

import (
	"errors"
	"os/exec"
	"strings"
	"syscall"
)

type posixController struct{}

func newProcessController() ProcessController {
	return posixController{}
}

// SpawnInteractive starts the assistant command in its own session (setsid)
// so it survives this process and can be killed as a group later. The handle
// is released immediately: the supervisor table keeps only the pid and treats
// it as a weak reference.
func (posixController) SpawnInteractive(workdir, command string) (int, error) {
	parts := strings.Fields(strings.TrimSpace(command))
	if len(parts) == 0 {
		return 0, errors.New("assistant command is empty")
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Dir = workdir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		debugLogf("spawn release failed pid=%d: %v", pid, err)
	}
	return pid, nil
}

// ProbeAlive sends signal 0. EPERM still means the process exists, it just
// belongs to someone else.
func (posixController) ProbeAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// TerminateTree kills the process group created at spawn, then the pid
// itself in case it escaped its group.
func (posixController) TerminateTree(pid int) error {
	if pid <= 0 {
		return nil
	}
	groupErr := syscall.Kill(-pid, syscall.SIGKILL)
	pidErr := syscall.Kill(pid, syscall.SIGKILL)
	if groupErr == nil || pidErr == nil {
		return nil
	}
	if errors.Is(pidErr, syscall.ESRCH) {
		return nil
	}
	return pidErr
}
