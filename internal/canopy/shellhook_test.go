package canopy

import (
	"strings"
	"testing"
)

func TestShellHook(t *testing.T) {
	for _, shell := range []string{"zsh", "bash", "fish"} {
		hook, err := ShellHook(shell)
		if err != nil {
			t.Fatalf("ShellHook(%q) failed: %v", shell, err)
		}
		if !strings.Contains(hook, "CANOPY_EMIT_CD_MARKER=1") {
			t.Fatalf("%s hook must request the cd marker", shell)
		}
		if !strings.Contains(hook, "__CANOPY_CD__=") {
			t.Fatalf("%s hook must extract the cd marker", shell)
		}
	}

	if _, err := ShellHook("powershell"); err == nil {
		t.Fatalf("expected error for unsupported shell")
	}
}
