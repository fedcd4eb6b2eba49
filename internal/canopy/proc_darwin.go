//go:build darwin

package canopy

import "fmt"

// ActivateWindow raises the frontmost window of pid via System Events. The
// API reports failure for already-focused windows, so errors are logged and
// swallowed; dead-session cleanup belongs to the next List sweep.
func (posixController) ActivateWindow(pid int) error {
	script := fmt.Sprintf("tell application \"System Events\" to set frontmost of (first process whose unix id is %d) to true", pid)
	if err := runCmdQuiet("", "osascript", "-e", script); err != nil {
		debugLogf("focus pid=%d not activated: %v", pid, err)
	}
	return nil
}

func (posixController) OpenDirectory(path string) error {
	return runCmdQuiet("", "open", path)
}
