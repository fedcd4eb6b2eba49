package canopy

import (
	"errors"
	"fmt"
)

var (
	ErrNotGitRepo = errors.New("run this command inside a git worktree")
	ErrNoSession  = errors.New("no assistant session registered for this workspace")
)

// ExternalToolError reports a subprocess that could not be started or exited
// non-zero. Stderr carries the tool's raw diagnostic text verbatim; Dir is the
// working directory the invocation was attempted in.
type ExternalToolError struct {
	Tool   string
	Args   []string
	Dir    string
	Stderr string
	Err    error
}

func (e *ExternalToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed in %q: %s", e.Tool, e.Dir, e.Stderr)
	}
	return fmt.Sprintf("%s failed in %q: %v", e.Tool, e.Dir, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// PartialRemovalError is returned when the workspace directory itself is gone
// but a secondary cleanup step (branch delete) failed. The dominant removal
// succeeded, so callers should treat this as a warning, not a failure.
type PartialRemovalError struct {
	Path   string
	Branch string
	Err    error
}

func (e *PartialRemovalError) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("workspace %s removed, but branch %q was retained: %v", e.Path, e.Branch, e.Err)
	}
	return fmt.Sprintf("workspace %s removed with leftover bookkeeping: %v", e.Path, e.Err)
}

func (e *PartialRemovalError) Unwrap() error { return e.Err }

// SpawnError reports that the assistant process could not be launched or that
// its process id could not be recovered from the launch confirmation.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("unable to launch assistant in %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
