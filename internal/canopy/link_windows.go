//go:build windows

package canopy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// linkDirectory creates an NTFS junction, the directory link object that does
// not need Developer Mode or administrative rights on most volumes. Falls
// back to a true directory symlink before giving up.
func linkDirectory(src, dst string) error {
	if err := runCmdQuiet("", "cmd", "/c", "mklink", "/J", dst, src); err == nil {
		return nil
	}
	return os.Symlink(src, dst)
}

// runElevatedLinkBatch writes every deferred junction into one .cmd script
// and launches it a single time through a UAC prompt, blocking until the
// operator completes or dismisses it.
func runElevatedLinkBatch(tasks []LinkTask) error {
	if len(tasks) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("@echo off\r\n")
	for _, task := range tasks {
		fmt.Fprintf(&b, "mklink /J \"%s\" \"%s\"\r\n", task.Dest, task.Source)
	}
	script := filepath.Join(os.TempDir(), "canopy-elevated-links.cmd")
	if err := os.WriteFile(script, []byte(b.String()), 0o700); err != nil {
		return err
	}
	defer os.Remove(script)
	return runCmdQuiet("", "powershell", "-NoProfile", "-Command",
		fmt.Sprintf("Start-Process -FilePath 'cmd.exe' -ArgumentList '/c','%s' -Verb RunAs -Wait", script))
}
