package canopy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	BaseBranch            string   `toml:"base_branch"`
	WorkspaceRootTemplate string   `toml:"workspace_root_template"`
	AssistantCommand      string   `toml:"assistant_command"`
	LinkIgnored           bool     `toml:"link_ignored"`
	LinkExclude           []string `toml:"link_exclude"`
	StatusAddr            string   `toml:"status_addr"`
	Notify                bool     `toml:"notify"`
	UpdateCheck           bool     `toml:"update_check"`
	EmitCDMarker          bool     `toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		BaseBranch:            "main",
		WorkspaceRootTemplate: "../{repo}.workspaces",
		AssistantCommand:      "claude",
		LinkIgnored:           true,
		StatusAddr:            "127.0.0.1:7477",
		Notify:                true,
		UpdateCheck:           true,
	}
}

// LoadConfig layers, in increasing priority: built-in defaults, the global
// config file, the repo-level .canopy.toml at the git root, and CANOPY_* env
// overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	globalPath := os.Getenv("CANOPY_CONFIG")
	if globalPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath = filepath.Join(home, ".config", "canopy", "config.toml")
		}
	}
	if globalPath != "" {
		if _, err := os.Stat(globalPath); err == nil {
			if _, err := toml.DecodeFile(globalPath, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", globalPath, err)
			}
		}
	}

	if repoRoot, err := findGitRoot("."); err == nil {
		repoConfigPath := filepath.Join(repoRoot, ".canopy.toml")
		if _, err := os.Stat(repoConfigPath); err == nil {
			if _, err := toml.DecodeFile(repoConfigPath, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", repoConfigPath, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	if os.Getenv("CANOPY_EMIT_CD_MARKER") == "1" {
		cfg.EmitCDMarker = true
	}
	return cfg, nil
}

// findGitRoot walks up from dir until it finds a directory containing .git.
func findGitRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, ".git")); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not inside a git repository")
		}
		abs = parent
	}
}

func parseBool(v string) (bool, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool: %s", v)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CANOPY_BASE_BRANCH"); v != "" {
		cfg.BaseBranch = v
	}
	if v := os.Getenv("CANOPY_WORKSPACE_ROOT_TEMPLATE"); v != "" {
		cfg.WorkspaceRootTemplate = v
	}
	if v := os.Getenv("CANOPY_ASSISTANT_COMMAND"); v != "" {
		cfg.AssistantCommand = v
	}
	if v := os.Getenv("CANOPY_LINK_IGNORED"); v != "" {
		if b, err := parseBool(v); err == nil {
			cfg.LinkIgnored = b
		}
	}
	if v := os.Getenv("CANOPY_LINK_EXCLUDE"); v != "" {
		parts := strings.Split(v, ",")
		exclude := make([]string, 0, len(parts))
		for _, part := range parts {
			if item := strings.TrimSpace(part); item != "" {
				exclude = append(exclude, item)
			}
		}
		cfg.LinkExclude = exclude
	}
	if v := os.Getenv("CANOPY_STATUS_ADDR"); v != "" {
		cfg.StatusAddr = v
	}
	if v := os.Getenv("CANOPY_NOTIFY"); v != "" {
		if b, err := parseBool(v); err == nil {
			cfg.Notify = b
		}
	}
	if v := os.Getenv("CANOPY_UPDATE_CHECK"); v != "" {
		if b, err := parseBool(v); err == nil {
			cfg.UpdateCheck = b
		}
	}
}
