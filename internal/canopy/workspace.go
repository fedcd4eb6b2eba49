package canopy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Workspace is one checked-out worktree registered with the repository.
// Branch is empty for a detached HEAD.
type Workspace struct {
	Path    string `json:"path"`
	Head    string `json:"head"`
	Branch  string `json:"branch,omitempty"`
	Current bool   `json:"current"`
}

type ProvisionOptions struct {
	Branch      string
	Path        string
	BaseRef     string
	LinkIgnored bool
}

type RemoveOptions struct {
	Target       string
	DeleteBranch bool
}

type Manager struct {
	Cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{Cfg: cfg}
}

func (m *Manager) RequireRepo() (string, error) {
	out, err := runCmdOutput("", "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", ErrNotGitRepo
	}
	return strings.TrimSpace(out), nil
}

func (m *Manager) RepoName(repoRoot string) string {
	out, err := runCmdOutput(repoRoot, "git", "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err == nil {
		commonDir := strings.TrimSpace(out)
		return filepath.Base(filepath.Dir(commonDir))
	}
	return filepath.Base(repoRoot)
}

func (m *Manager) CurrentBranch(repoRoot string) string {
	out, err := runCmdOutput(repoRoot, "git", "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (m *Manager) BranchExists(repoRoot, branch string) bool {
	_, err := runCmdOutput(repoRoot, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// RefExists accepts anything git can resolve to a commit: local and remote
// branches, tags, and raw SHAs.
func (m *Manager) RefExists(repoRoot, ref string) bool {
	_, err := runCmdOutput(repoRoot, "git", "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// ResolveBaseRef picks the ref a new workspace branches from: an explicitly
// requested ref wins, then the configured base branch if it exists, then the
// currently checked-out branch.
func (m *Manager) ResolveBaseRef(repoRoot, requested string) (string, error) {
	if requested != "" {
		if !m.RefExists(repoRoot, requested) {
			return "", fmt.Errorf("base ref not found: %s", requested)
		}
		return requested, nil
	}
	if m.BranchExists(repoRoot, m.Cfg.BaseBranch) {
		return m.Cfg.BaseBranch, nil
	}
	current := m.CurrentBranch(repoRoot)
	if current == "" {
		return "", fmt.Errorf("unable to infer base branch (detached HEAD and '%s' missing)", m.Cfg.BaseBranch)
	}
	return current, nil
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return filepath.Clean(abs)
}

func (m *Manager) WorkspaceRootDir(repoRoot string) string {
	repoName := m.RepoName(repoRoot)
	expanded := strings.ReplaceAll(m.Cfg.WorkspaceRootTemplate, "{repo}", repoName)
	if filepath.IsAbs(expanded) {
		return absPath(expanded)
	}
	return absPath(filepath.Join(repoRoot, expanded))
}

// parsePorcelain reads `git worktree list --porcelain` output: records are
// blank-line separated, fields are `worktree `, `HEAD ` and `branch ` lines,
// and a branch value of refs/heads/X is normalized to the bare name X. A
// record without a branch line is a detached HEAD.
func parsePorcelain(out string) []Workspace {
	var res []Workspace
	var cur Workspace
	hasData := false

	flush := func() {
		if hasData {
			res = append(res, cur)
		}
		cur = Workspace{}
		hasData = false
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			cur.Path = strings.TrimPrefix(line, "worktree ")
			hasData = true
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			cur.Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	}
	flush()
	return res
}

func (m *Manager) listWorkspaces(repoRoot string) ([]Workspace, error) {
	out, err := gitOutput(repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(out), nil
}

// List returns every workspace of the enclosing repository, the current one
// first.
func (m *Manager) List() ([]Workspace, error) {
	repoRoot, err := m.RequireRepo()
	if err != nil {
		return nil, err
	}
	items, err := m.listWorkspaces(repoRoot)
	if err != nil {
		return nil, err
	}
	current := absPath(repoRoot)
	for i := range items {
		items[i].Path = absPath(items[i].Path)
		items[i].Current = items[i].Path == current
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Current {
			return true
		}
		if items[j].Current {
			return false
		}
		return items[i].Path < items[j].Path
	})
	return items, nil
}

func (m *Manager) FindWorkspace(target string) (*Workspace, error) {
	items, err := m.List()
	if err != nil {
		return nil, err
	}
	targetAbs := ""
	if st, err := os.Stat(target); err == nil && st.IsDir() {
		targetAbs = absPath(target)
	}
	for i := range items {
		if target == items[i].Branch || target == items[i].Path || targetAbs == items[i].Path || target == filepath.Base(items[i].Path) {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("workspace not found for target: %s", target)
}

func (m *Manager) runGitWorktreeAdd(repoRoot string, args ...string) error {
	allArgs := append([]string{"worktree", "add"}, args...)
	timeout := gitWorktreeCommandTimeout()
	if err := runCmdQuietTimeout(repoRoot, timeout, "git", allArgs...); err != nil {
		if shouldRetryWorktreeAdd(err) {
			_ = runCmdQuiet(repoRoot, "git", "worktree", "prune")
			return runCmdQuietTimeout(repoRoot, timeout, "git", allArgs...)
		}
		return err
	}
	return nil
}

// Provision creates a new branch and worktree, then links ignored build
// artifacts into it. Link-planner failures never roll the workspace back:
// creation and linking are independent commits, and a workspace without
// linked caches is merely slower to first build, not broken.
func (m *Manager) Provision(opts ProvisionOptions) (string, *LinkReport, error) {
	repoRoot, err := m.RequireRepo()
	if err != nil {
		debugLogf("provision require_repo failed: %v", err)
		return "", nil, err
	}

	branch := strings.TrimSpace(opts.Branch)
	if branch == "" {
		return "", nil, errors.New("branch name cannot be empty")
	}
	if m.BranchExists(repoRoot, branch) {
		return "", nil, fmt.Errorf("branch already exists: %s", branch)
	}

	workspacePath := strings.TrimSpace(opts.Path)
	if workspacePath == "" {
		workspacePath = filepath.Join(m.WorkspaceRootDir(repoRoot), branch)
	}
	workspacePath = absPath(workspacePath)
	if _, err := os.Stat(workspacePath); err == nil {
		return "", nil, fmt.Errorf("target path already exists: %s", workspacePath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", nil, err
	}
	if err := os.MkdirAll(filepath.Dir(workspacePath), 0o755); err != nil {
		return "", nil, err
	}

	base, err := m.ResolveBaseRef(repoRoot, opts.BaseRef)
	if err != nil {
		return "", nil, err
	}
	addArgs := []string{"-b", branch, workspacePath, base}
	if err := m.runGitWorktreeAdd(repoRoot, addArgs...); err != nil {
		debugLogf("provision worktree_add failed branch=%q path=%q: %v", branch, workspacePath, err)
		return "", nil, err
	}
	debugLogf("provision created branch=%q path=%q", branch, workspacePath)

	var report *LinkReport
	if opts.LinkIgnored {
		report, err = m.LinkArtifacts(repoRoot, workspacePath)
		if err != nil {
			debugLogf("provision link_failed path=%q: %v", workspacePath, err)
			report = nil
		}
	}
	return workspacePath, report, nil
}

// Remove tears a workspace down. When `git worktree remove` fails but the
// directory is still physically present, the tree is deleted by hand without
// dereferencing any link objects inside it. Metadata pruning always runs
// afterwards and its failure is swallowed. A failed branch delete after a
// successful removal comes back as *PartialRemovalError.
func (m *Manager) Remove(opts RemoveOptions) (string, error) {
	repoRoot, err := m.RequireRepo()
	if err != nil {
		return "", err
	}
	ws, err := m.FindWorkspace(opts.Target)
	if err != nil {
		return "", err
	}
	if ws.Current {
		return "", fmt.Errorf("refusing to remove the current workspace: %s", ws.Path)
	}

	removeErr := m.runGitWorktreeRemove(repoRoot, ws.Path)
	if removeErr != nil && shouldRetryWorktreeRemove(removeErr) {
		_ = runCmdQuiet(repoRoot, "git", "worktree", "prune")
		removeErr = m.runGitWorktreeRemove(repoRoot, ws.Path)
	}
	if removeErr != nil {
		if _, statErr := os.Lstat(ws.Path); statErr == nil {
			debugLogf("remove falling back to manual delete path=%q: %v", ws.Path, removeErr)
			// os.RemoveAll unlinks symlinks and junctions without following
			// them, so linked caches in the source tree stay intact.
			if delErr := os.RemoveAll(ws.Path); delErr != nil {
				_ = runCmdQuiet(repoRoot, "git", "worktree", "prune")
				return "", fmt.Errorf("worktree removal failed (%v) and manual delete failed: %w", removeErr, delErr)
			}
		}
		// Directory is gone, however it got that way.
	}

	// Drop stale bookkeeping regardless of how the directory went away.
	_ = runCmdQuiet(repoRoot, "git", "worktree", "prune")

	if opts.DeleteBranch && ws.Branch != "" {
		if _, err := gitOutput(repoRoot, "branch", "-D", ws.Branch); err != nil {
			return ws.Path, &PartialRemovalError{Path: ws.Path, Branch: ws.Branch, Err: err}
		}
	}
	return ws.Path, nil
}

func (m *Manager) runGitWorktreeRemove(repoRoot, workspacePath string) error {
	timeout := gitWorktreeCommandTimeout()
	return runCmdQuietTimeout(repoRoot, timeout, "git", "worktree", "remove", "--force", workspacePath)
}
