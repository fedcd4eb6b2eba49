//go:build linux

package canopy

import "strconv"

// ActivateWindow asks xdotool to raise the window owned by pid. The window
// manager reports "not activated" ambiguously for windows that are already
// focused, so a non-zero exit is not an error; a missing xdotool just means
// focus is unavailable on this desktop. Dead-session cleanup is left to the
// next List sweep.
func (posixController) ActivateWindow(pid int) error {
	if !commandExists("xdotool") {
		debugLogf("focus skipped: xdotool not installed")
		return nil
	}
	if err := runCmdQuiet("", "xdotool", "search", "--pid", strconv.Itoa(pid), "windowactivate"); err != nil {
		debugLogf("focus pid=%d not activated: %v", pid, err)
	}
	return nil
}

func (posixController) OpenDirectory(path string) error {
	return runCmdQuiet("", "xdg-open", path)
}
