//go:build !windows

package canopy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// linkDirectory creates a directory symlink. On unix this is unprivileged;
// failures here mean a restricted mount or similar, and the task is retried
// in the elevated batch.
func linkDirectory(src, dst string) error {
	return os.Symlink(src, dst)
}

// runElevatedLinkBatch re-issues every deferred directory link as one shell
// script executed under sudo, so the operator sees at most one prompt per
// provisioning call. Blocks until the prompt is completed or dismissed.
func runElevatedLinkBatch(tasks []LinkTask) error {
	if len(tasks) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, task := range tasks {
		fmt.Fprintf(&b, "ln -s %q %q\n", task.Source, task.Dest)
	}
	script := filepath.Join(os.TempDir(), "canopy-elevated-links.sh")
	if err := os.WriteFile(script, []byte(b.String()), 0o700); err != nil {
		return err
	}
	defer os.Remove(script)
	return runCmdQuiet("", "sudo", "sh", script)
}
