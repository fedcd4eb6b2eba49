package canopy

import (
	"os"
	"path/filepath"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CANOPY_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BaseBranch != "main" {
		t.Fatalf("unexpected base branch: %q", cfg.BaseBranch)
	}
	if cfg.WorkspaceRootTemplate != "../{repo}.workspaces" {
		t.Fatalf("unexpected workspace root template: %q", cfg.WorkspaceRootTemplate)
	}
	if !cfg.LinkIgnored || !cfg.Notify || !cfg.UpdateCheck {
		t.Fatalf("expected link/notify/update enabled by default: %+v", cfg)
	}
	if cfg.EmitCDMarker {
		t.Fatalf("cd marker must be off unless requested")
	}
}

func TestLoadConfigGlobalFile(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
base_branch = "trunk"
assistant_command = "aider"
link_ignored = false
link_exclude = [".env", "secrets"]
status_addr = "127.0.0.1:9000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	t.Setenv("CANOPY_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BaseBranch != "trunk" || cfg.AssistantCommand != "aider" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LinkIgnored {
		t.Fatalf("expected link_ignored=false from file")
	}
	if len(cfg.LinkExclude) != 2 || cfg.LinkExclude[0] != ".env" {
		t.Fatalf("unexpected link_exclude: %v", cfg.LinkExclude)
	}
	if cfg.StatusAddr != "127.0.0.1:9000" {
		t.Fatalf("unexpected status addr: %q", cfg.StatusAddr)
	}
}

func TestLoadConfigRepoFileOverridesGlobal(t *testing.T) {
	dir := chdirTemp(t)
	global := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(global, []byte(`base_branch = "trunk"`), 0o644); err != nil {
		t.Fatalf("write global config failed: %v", err)
	}
	t.Setenv("CANOPY_CONFIG", global)

	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".canopy.toml"), []byte(`base_branch = "develop"`), 0o644); err != nil {
		t.Fatalf("write repo config failed: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BaseBranch != "develop" {
		t.Fatalf("expected repo config to win, got %q", cfg.BaseBranch)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CANOPY_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("CANOPY_BASE_BRANCH", "release")
	t.Setenv("CANOPY_ASSISTANT_COMMAND", "claude --dangerously-skip-permissions")
	t.Setenv("CANOPY_LINK_IGNORED", "off")
	t.Setenv("CANOPY_LINK_EXCLUDE", ".env, secrets ,")
	t.Setenv("CANOPY_EMIT_CD_MARKER", "1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BaseBranch != "release" {
		t.Fatalf("env override not applied: %q", cfg.BaseBranch)
	}
	if cfg.AssistantCommand != "claude --dangerously-skip-permissions" {
		t.Fatalf("unexpected assistant command: %q", cfg.AssistantCommand)
	}
	if cfg.LinkIgnored {
		t.Fatalf("expected link_ignored disabled via env")
	}
	if len(cfg.LinkExclude) != 2 || cfg.LinkExclude[1] != "secrets" {
		t.Fatalf("unexpected link_exclude: %v", cfg.LinkExclude)
	}
	if !cfg.EmitCDMarker {
		t.Fatalf("expected cd marker enabled via env")
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", " on "} {
		got, err := parseBool(v)
		if err != nil || !got {
			t.Fatalf("parseBool(%q) = %v, %v", v, got, err)
		}
	}
	for _, v := range []string{"false", "0", "no", "OFF"} {
		got, err := parseBool(v)
		if err != nil || got {
			t.Fatalf("parseBool(%q) = %v, %v", v, got, err)
		}
	}
	if _, err := parseBool("maybe"); err == nil {
		t.Fatalf("expected error for invalid bool")
	}
}
