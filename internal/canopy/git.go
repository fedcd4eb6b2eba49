package canopy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

func runCmdBytes(dir, name string, args ...string) ([]byte, error) {
	return runCmdBytesWithTimeout(dir, 0, name, args...)
}

func runCmdBytesWithTimeout(dir string, timeout time.Duration, name string, args ...string) ([]byte, error) {
	start := time.Now()
	debugLogf("cmd start dir=%q name=%q args=%q timeout=%s", dir, name, strings.Join(args, " "), timeout)
	ctx := context.Background()
	cancel := func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if len(trimmed) > 600 {
			trimmed = trimmed[:600] + "...(truncated)"
		}
		debugLogf("cmd fail dur=%s dir=%q name=%q args=%q err=%v out=%q", elapsed, dir, name, strings.Join(args, " "), err, trimmed)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if trimmed != "" {
				return nil, fmt.Errorf("%s %s timed out after %s: %s", name, strings.Join(args, " "), timeout, trimmed)
			}
			return nil, fmt.Errorf("%s %s timed out after %s", name, strings.Join(args, " "), timeout)
		}
		if trimmed != "" {
			return nil, fmt.Errorf("%s %s failed: %w: %s", name, strings.Join(args, " "), err, trimmed)
		}
		return nil, fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	debugLogf("cmd ok dur=%s dir=%q name=%q args=%q out_bytes=%d", elapsed, dir, name, strings.Join(args, " "), len(out))
	return out, nil
}

func runCmdOutput(dir, name string, args ...string) (string, error) {
	out, err := runCmdBytes(dir, name, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func runCmdQuiet(dir, name string, args ...string) error {
	_, err := runCmdBytes(dir, name, args...)
	return err
}

func runCmdQuietTimeout(dir string, timeout time.Duration, name string, args ...string) error {
	_, err := runCmdBytesWithTimeout(dir, timeout, name, args...)
	return err
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// gitOutput runs git with stdout and stderr captured separately, so that the
// tool's diagnostic text can travel inside an ExternalToolError untouched by
// whatever git printed to stdout.
func gitOutput(dir string, args ...string) (string, error) {
	start := time.Now()
	debugLogf("git start dir=%q args=%q", dir, strings.Join(args, " "))
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		diag := strings.TrimSpace(stderr.String())
		debugLogf("git fail dur=%s dir=%q args=%q err=%v stderr=%q", elapsed, dir, strings.Join(args, " "), err, diag)
		return "", &ExternalToolError{Tool: "git", Args: args, Dir: dir, Stderr: diag, Err: err}
	}
	debugLogf("git ok dur=%s dir=%q args=%q out_bytes=%d", elapsed, dir, strings.Join(args, " "), stdout.Len())
	return strings.TrimRight(stdout.String(), "\n"), nil
}

func gitWorktreeCommandTimeout() time.Duration {
	const (
		defaultSeconds = 45
		minSeconds     = 5
		maxSeconds     = 600
	)
	raw := strings.TrimSpace(os.Getenv("CANOPY_GIT_WORKTREE_TIMEOUT_SECONDS"))
	if raw == "" {
		return defaultSeconds * time.Second
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return defaultSeconds * time.Second
	}
	if seconds < minSeconds {
		seconds = minSeconds
	}
	if seconds > maxSeconds {
		seconds = maxSeconds
	}
	return time.Duration(seconds) * time.Second
}

func shouldRetryWorktreeAdd(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out"):
		return true
	case strings.Contains(msg, "already checked out"):
		return true
	case strings.Contains(msg, "already exists"):
		return true
	case strings.Contains(msg, "already registered"):
		return true
	case strings.Contains(msg, "unable to create"):
		return true
	case strings.Contains(msg, "cannot lock"):
		return true
	default:
		return false
	}
}

func shouldRetryWorktreeRemove(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out"):
		return true
	case strings.Contains(msg, "is locked"):
		return true
	case strings.Contains(msg, "cannot remove"):
		return true
	case strings.Contains(msg, "cannot lock"):
		return true
	default:
		return false
	}
}
