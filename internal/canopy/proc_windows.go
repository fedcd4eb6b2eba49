//go:build windows

package canopy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"
)

type windowsController struct{}

func newProcessController() ProcessController {
	return windowsController{}
}

// SpawnInteractive launches the assistant in a fresh console through
// Start-Process and reads the pid back from the launch confirmation.
func (windowsController) SpawnInteractive(workdir, command string) (int, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return 0, errors.New("assistant command is empty")
	}
	ps := fmt.Sprintf("(Start-Process -FilePath 'cmd.exe' -ArgumentList '/c','%s' -WorkingDirectory '%s' -PassThru).Id",
		strings.ReplaceAll(command, "'", "''"), strings.ReplaceAll(workdir, "'", "''"))
	out, err := runCmdOutput("", "powershell", "-NoProfile", "-Command", ps)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unparseable pid in launch confirmation %q: %w", strings.TrimSpace(out), err)
	}
	return pid, nil
}

func (windowsController) ProbeAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)
	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == 259 // STILL_ACTIVE
}

// ActivateWindow uses WScript.Shell AppActivate, which returns False both for
// missing windows and for windows that already have focus. That ambiguity
// means a negative result cannot be treated as failure; cleanup of dead
// sessions is deferred to the next List sweep.
func (windowsController) ActivateWindow(pid int) error {
	ps := fmt.Sprintf("(New-Object -ComObject WScript.Shell).AppActivate(%d)", pid)
	if err := runCmdQuiet("", "powershell", "-NoProfile", "-Command", ps); err != nil {
		debugLogf("focus pid=%d not activated: %v", pid, err)
	}
	return nil
}

func (windowsController) TerminateTree(pid int) error {
	if pid <= 0 {
		return nil
	}
	return runCmdQuiet("", "taskkill", "/PID", strconv.Itoa(pid), "/T", "/F")
}

func (windowsController) OpenDirectory(path string) error {
	return runCmdQuiet("", "explorer", strings.ReplaceAll(path, "/", `\`))
}
