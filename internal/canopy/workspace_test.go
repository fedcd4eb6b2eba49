package canopy

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestParsePorcelain(t *testing.T) {
	out := strings.Join([]string{
		"worktree /work/repo",
		"HEAD 1111111111111111111111111111111111111111",
		"branch refs/heads/main",
		"",
		"worktree /work/repo.workspaces/feature-x",
		"HEAD 2222222222222222222222222222222222222222",
		"branch refs/heads/feature-x",
		"",
		"worktree /work/detached",
		"HEAD 3333333333333333333333333333333333333333",
		"detached",
		"",
	}, "\n")

	items := parsePorcelain(out)
	if len(items) != 3 {
		t.Fatalf("expected 3 records, got %d", len(items))
	}
	if items[0].Path != "/work/repo" || items[0].Branch != "main" {
		t.Fatalf("unexpected first record: %+v", items[0])
	}
	if items[1].Branch != "feature-x" {
		t.Fatalf("expected refs/heads/ prefix stripped, got %q", items[1].Branch)
	}
	if items[2].Branch != "" {
		t.Fatalf("expected empty branch for detached HEAD, got %q", items[2].Branch)
	}
	if items[2].Head != "3333333333333333333333333333333333333333" {
		t.Fatalf("unexpected head: %q", items[2].Head)
	}
}

func TestParsePorcelainNoTrailingBlank(t *testing.T) {
	out := "worktree /work/repo\nHEAD aaaa\nbranch refs/heads/main"
	items := parsePorcelain(out)
	if len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}
	if items[0].Branch != "main" {
		t.Fatalf("unexpected branch: %q", items[0].Branch)
	}
}

func TestParsePorcelainCRLF(t *testing.T) {
	out := "worktree /work/repo\r\nHEAD aaaa\r\nbranch refs/heads/main\r\n\r\n"
	items := parsePorcelain(out)
	if len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}
	if items[0].Path != "/work/repo" || items[0].Branch != "main" {
		t.Fatalf("unexpected record: %+v", items[0])
	}
}

func TestParsePorcelainEmpty(t *testing.T) {
	if items := parsePorcelain(""); len(items) != 0 {
		t.Fatalf("expected no records, got %d", len(items))
	}
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
}

func gitRevParse(t *testing.T, dir, ref string) string {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", ref)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git rev-parse %s failed: %v: %s", ref, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out))
}

func commitFile(t *testing.T, repo, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(repo, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write file failed: %v", err)
	}
	gitRun(t, repo, "add", name)
	gitRun(t, repo, "commit", "-m", message)
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is required for this test")
	}

	parent := t.TempDir()
	repo := filepath.Join(parent, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatalf("mkdir repo failed: %v", err)
	}

	gitRun(t, repo, "init", "-b", "main")
	gitRun(t, repo, "config", "user.email", "canopy-test@example.com")
	gitRun(t, repo, "config", "user.name", "Canopy Test")
	commitFile(t, repo, "README.md", "hello\n", "init")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})
	if err := os.Chdir(repo); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	return repo
}

func TestProvisionListRemove(t *testing.T) {
	initTestRepo(t)

	cfg := DefaultConfig()
	cfg.LinkIgnored = false
	m := NewManager(cfg)

	wsPath, _, err := m.Provision(ProvisionOptions{Branch: "feature-1"})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if st, err := os.Stat(wsPath); err != nil || !st.IsDir() {
		t.Fatalf("expected workspace dir at %q: %v", wsPath, err)
	}

	items, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(items))
	}
	if !items[0].Current {
		t.Fatalf("expected current workspace first, got %+v", items[0])
	}

	ws, err := m.FindWorkspace("feature-1")
	if err != nil {
		t.Fatalf("FindWorkspace failed: %v", err)
	}
	if ws.Branch != "feature-1" {
		t.Fatalf("unexpected workspace: %+v", ws)
	}

	gotPath, err := m.Remove(RemoveOptions{Target: "feature-1", DeleteBranch: true})
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if gotPath != wsPath {
		t.Fatalf("expected removed path %q, got %q", wsPath, gotPath)
	}
	if _, err := os.Stat(wsPath); !os.IsNotExist(err) {
		t.Fatalf("expected workspace dir gone, stat err: %v", err)
	}

	repoRoot, err := m.RequireRepo()
	if err != nil {
		t.Fatalf("RequireRepo failed: %v", err)
	}
	if m.BranchExists(repoRoot, "feature-1") {
		t.Fatalf("expected branch deleted")
	}
}

func TestProvisionRejectsExistingBranch(t *testing.T) {
	initTestRepo(t)

	cfg := DefaultConfig()
	cfg.LinkIgnored = false
	m := NewManager(cfg)

	if _, _, err := m.Provision(ProvisionOptions{Branch: "dup"}); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if _, _, err := m.Provision(ProvisionOptions{Branch: "dup"}); err == nil {
		t.Fatalf("expected error for existing branch")
	}
}

func TestRemoveSurvivesManuallyDeletedWorkspace(t *testing.T) {
	initTestRepo(t)

	cfg := DefaultConfig()
	cfg.LinkIgnored = false
	m := NewManager(cfg)

	wsPath, _, err := m.Provision(ProvisionOptions{Branch: "doomed"})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if err := os.RemoveAll(wsPath); err != nil {
		t.Fatalf("manual delete failed: %v", err)
	}

	if _, err := m.Remove(RemoveOptions{Target: "doomed", DeleteBranch: true}); err != nil {
		t.Fatalf("Remove after manual delete failed: %v", err)
	}

	items, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the main workspace, got %d", len(items))
	}
}

func TestRemoveRefusesCurrentWorkspace(t *testing.T) {
	repo := initTestRepo(t)

	cfg := DefaultConfig()
	cfg.LinkIgnored = false
	m := NewManager(cfg)

	if _, err := m.Remove(RemoveOptions{Target: repo}); err == nil {
		t.Fatalf("expected refusal to remove current workspace")
	}
}

func TestProvisionHonorsConfiguredBaseBranch(t *testing.T) {
	repo := initTestRepo(t)
	mainHead := gitRevParse(t, repo, "main")

	gitRun(t, repo, "checkout", "-b", "dev")
	commitFile(t, repo, "dev.txt", "dev\n", "dev work")
	devHead := gitRevParse(t, repo, "dev")
	if devHead == mainHead {
		t.Fatalf("fixture broken: dev must be ahead of main")
	}

	cfg := DefaultConfig()
	cfg.BaseBranch = "main"
	cfg.LinkIgnored = false
	m := NewManager(cfg)

	wsPath, _, err := m.Provision(ProvisionOptions{Branch: "feat"})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if got := gitRevParse(t, wsPath, "HEAD"); got != mainHead {
		t.Fatalf("expected workspace branched from main (%s), got %s", mainHead, got)
	}
}

func TestProvisionFromTagAndSHA(t *testing.T) {
	repo := initTestRepo(t)
	gitRun(t, repo, "tag", "v1.0")
	taggedHead := gitRevParse(t, repo, "v1.0")
	commitFile(t, repo, "later.txt", "later\n", "later work")

	cfg := DefaultConfig()
	cfg.LinkIgnored = false
	m := NewManager(cfg)

	wsPath, _, err := m.Provision(ProvisionOptions{Branch: "from-tag", BaseRef: "v1.0"})
	if err != nil {
		t.Fatalf("Provision from tag failed: %v", err)
	}
	if got := gitRevParse(t, wsPath, "HEAD"); got != taggedHead {
		t.Fatalf("expected workspace at tagged commit %s, got %s", taggedHead, got)
	}

	wsPath, _, err = m.Provision(ProvisionOptions{Branch: "from-sha", BaseRef: taggedHead})
	if err != nil {
		t.Fatalf("Provision from SHA failed: %v", err)
	}
	if got := gitRevParse(t, wsPath, "HEAD"); got != taggedHead {
		t.Fatalf("expected workspace at commit %s, got %s", taggedHead, got)
	}
}

func TestRefExists(t *testing.T) {
	repo := initTestRepo(t)
	gitRun(t, repo, "tag", "v1.0")
	head := gitRevParse(t, repo, "main")

	m := NewManager(DefaultConfig())
	for _, ref := range []string{"main", "v1.0", head, "HEAD"} {
		if !m.RefExists(repo, ref) {
			t.Fatalf("expected %q to resolve", ref)
		}
	}
	if m.RefExists(repo, "no-such-ref") {
		t.Fatalf("unknown ref must not resolve")
	}
}

func TestResolveBaseRefFallsBackToCurrent(t *testing.T) {
	initTestRepo(t)

	cfg := DefaultConfig()
	cfg.BaseBranch = "does-not-exist"
	m := NewManager(cfg)

	repoRoot, err := m.RequireRepo()
	if err != nil {
		t.Fatalf("RequireRepo failed: %v", err)
	}
	base, err := m.ResolveBaseRef(repoRoot, "")
	if err != nil {
		t.Fatalf("ResolveBaseRef failed: %v", err)
	}
	if base != "main" {
		t.Fatalf("expected fallback to current branch, got %q", base)
	}

	if _, err := m.ResolveBaseRef(repoRoot, "missing-base"); err == nil {
		t.Fatalf("expected error for unknown requested base")
	}
}

func TestWorkspaceRootDirTemplate(t *testing.T) {
	repo := initTestRepo(t)

	cfg := DefaultConfig()
	m := NewManager(cfg)

	resolve := func(p string) string {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			return absPath(real)
		}
		return absPath(p)
	}
	got := m.WorkspaceRootDir(repo)
	want := filepath.Join(filepath.Dir(resolve(repo)), "repo.workspaces")
	if resolve(filepath.Dir(got)) != resolve(filepath.Dir(want)) || filepath.Base(got) != "repo.workspaces" {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
