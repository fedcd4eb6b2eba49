package canopy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var Version = "dev"

func Run(args []string) int {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	mgr := NewManager(cfg)
	sup := NewSupervisor(cfg.AssistantCommand)

	if len(args) == 0 {
		printHelp(os.Stdout)
		return 0
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "list":
		return runList(mgr, rest)
	case "new":
		return runNew(mgr, rest)
	case "rm", "remove":
		return runRemove(mgr, sup, rest)
	case "spawn":
		return runSpawn(mgr, sup, rest)
	case "focus":
		return runFocus(mgr, sup, rest)
	case "kill":
		return runKill(mgr, sup, rest)
	case "sessions":
		return runSessions(sup, rest)
	case "open":
		return runOpen(mgr, sup, rest)
	case "link":
		return runLink(mgr, rest)
	case "serve":
		return runServe(cfg, sup, rest)
	case "doctor":
		return runDoctor(mgr, rest)
	case "shell-hook":
		return runShellHook(rest)
	case "version", "--version", "-v":
		fmt.Println(Version)
		if latest, ok := checkForUpdate(Version, cfg); ok {
			fmt.Fprintln(os.Stderr, WarnMsg(fmt.Sprintf("update available: %s", latest)))
		}
		return 0
	case "help", "--help", "-h":
		printHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", cmd)
		printHelp(os.Stderr)
		return 1
	}
}

func runList(mgr *Manager, args []string) int {
	jsonOut := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOut = true
		default:
			fmt.Fprintln(os.Stderr, "error: usage: canopy list [--json]")
			return 1
		}
	}

	items, err := mgr.List()
	if err != nil {
		if errors.Is(err, ErrNotGitRepo) {
			fmt.Fprintln(os.Stderr, "error: run this command inside a git worktree")
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Println(styleTableHead.Render(fmt.Sprintf("%-3s %-30s %-10s %s", "CUR", "BRANCH", "HEAD", "PATH")))
	for _, it := range items {
		cur := ""
		if it.Current {
			cur = styleCurrent.Render("*")
		}
		branch := it.Branch
		if branch == "" {
			branch = styleDim.Render("detached")
		} else {
			branch = styleBranch.Render(branch)
		}
		head := it.Head
		if len(head) > 10 {
			head = head[:10]
		}
		fmt.Printf("%-3s %-30s %-10s %s\n", cur, branch, head, stylePath.Render(it.Path))
	}
	return 0
}

func runNew(mgr *Manager, args []string) int {
	base := ""
	path := ""
	noLink := false
	positionals := []string{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "--from":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --from requires a ref")
				return 1
			}
			base = args[i+1]
			i++
		case "--path":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --path requires a directory")
				return 1
			}
			path = args[i+1]
			i++
		case "--no-link":
			noLink = true
		case "-h", "--help":
			fmt.Fprintln(os.Stdout, "usage: canopy new <branch> [--from <ref>] [--path <dir>] [--no-link]")
			return 0
		default:
			if strings.HasPrefix(a, "-") {
				fmt.Fprintf(os.Stderr, "error: unknown option for new: %s\n", a)
				return 1
			}
			positionals = append(positionals, a)
		}
	}

	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy new <branch> [--from <ref>] [--path <dir>] [--no-link]")
		return 1
	}

	wsPath, report, err := mgr.Provision(ProvisionOptions{
		Branch:      positionals[0],
		Path:        path,
		BaseRef:     base,
		LinkIgnored: mgr.Cfg.LinkIgnored && !noLink,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if report != nil && (report.Linked > 0 || report.Copied > 0 || len(report.Deferred) > 0) {
		fmt.Fprintln(os.Stderr, InfoMsg(fmt.Sprintf("linked %d artifacts (%d copied, %d deferred)",
			report.Linked, report.Copied, len(report.Deferred))))
	}
	fmt.Println(wsPath)
	emitCDMarkerIfEnabled(mgr.Cfg, wsPath)
	return 0
}

func runRemove(mgr *Manager, sup *Supervisor, args []string) int {
	deleteBranch := false
	positionals := []string{}
	for _, a := range args {
		switch a {
		case "--delete-branch":
			deleteBranch = true
		default:
			if strings.HasPrefix(a, "-") {
				fmt.Fprintf(os.Stderr, "error: unknown option for rm: %s\n", a)
				return 1
			}
			positionals = append(positionals, a)
		}
	}
	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy rm <branch-or-path> [--delete-branch]")
		return 1
	}

	// Stop any assistant still bound to the workspace before the directory
	// goes away.
	if ws, err := mgr.FindWorkspace(positionals[0]); err == nil {
		_ = sup.Kill(ws.Path)
	}

	path, err := mgr.Remove(RemoveOptions{Target: positionals[0], DeleteBranch: deleteBranch})
	var partial *PartialRemovalError
	if errors.As(err, &partial) {
		fmt.Fprintln(os.Stderr, WarnMsg(partial.Error()))
		fmt.Println(path)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(SuccessMsg("removed " + path))
	return 0
}

// resolveSessionPath maps a branch name, workspace path or directory basename
// to the workspace path sessions are keyed by.
func resolveSessionPath(mgr *Manager, target string) (string, error) {
	if ws, err := mgr.FindWorkspace(target); err == nil {
		return ws.Path, nil
	}
	if st, err := os.Stat(target); err == nil && st.IsDir() {
		return absPath(target), nil
	}
	return "", fmt.Errorf("workspace not found for target: %s", target)
}

func runSpawn(mgr *Manager, sup *Supervisor, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy spawn <branch-or-path>")
		return 1
	}
	path, err := resolveSessionPath(mgr, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := sup.Spawn(path); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(SuccessMsg("assistant started: " + path))
	return 0
}

func runFocus(mgr *Manager, sup *Supervisor, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy focus <branch-or-path>")
		return 1
	}
	path, err := resolveSessionPath(mgr, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := sup.Focus(path); err != nil {
		if errors.Is(err, ErrNoSession) {
			fmt.Fprintf(os.Stderr, "error: no assistant session for %s\n", path)
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runKill(mgr *Manager, sup *Supervisor, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy kill <branch-or-path>")
		return 1
	}
	path, err := resolveSessionPath(mgr, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := sup.Kill(path); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(SuccessMsg("assistant stopped: " + path))
	return 0
}

func runSessions(sup *Supervisor, args []string) int {
	jsonOut := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOut = true
		default:
			fmt.Fprintln(os.Stderr, "error: usage: canopy sessions [--json]")
			return 1
		}
	}

	sessions := sup.List()
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sessions); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	if len(sessions) == 0 {
		fmt.Println(styleDim.Render("no assistant sessions"))
		return 0
	}
	fmt.Println(styleTableHead.Render(fmt.Sprintf("%-8s %s", "PID", "PATH")))
	for _, sess := range sessions {
		fmt.Printf("%-8d %s\n", sess.PID, stylePath.Render(sess.Path))
	}
	return 0
}

func runOpen(mgr *Manager, sup *Supervisor, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy open <branch-or-path>")
		return 1
	}
	path, err := resolveSessionPath(mgr, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := sup.OpenDirectory(path); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runLink(mgr *Manager, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy link <source-root> <dest-root>")
		return 1
	}
	report, err := mgr.LinkArtifacts(absPath(args[0]), absPath(args[1]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(InfoMsg(fmt.Sprintf("linked %d, copied %d, skipped %d, deferred %d",
		report.Linked, report.Copied, report.Skipped, len(report.Deferred))))
	return 0
}

func runServe(cfg Config, sup *Supervisor, args []string) int {
	addr := cfg.StatusAddr
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--addr":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --addr requires an address")
				return 1
			}
			addr = args[i+1]
			i++
		default:
			fmt.Fprintln(os.Stderr, "error: usage: canopy serve [--addr <host:port>]")
			return 1
		}
	}

	bridge := NewStatusBridge(sup, cfg.Notify)
	go func() {
		for event := range bridge.Events() {
			fmt.Println(InfoMsg(fmt.Sprintf("%s %s %s", event.At.Format("15:04:05"), event.Status, event.Path)))
		}
	}()
	fmt.Println(InfoMsg("status bridge listening on " + addr))
	if err := bridge.Serve(addr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runDoctor(mgr *Manager, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy doctor")
		return 1
	}
	report := mgr.Doctor()
	for _, line := range report.Lines {
		fmt.Println(line)
	}
	return report.ExitCode
}

func runShellHook(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "error: usage: canopy shell-hook <zsh|bash|fish>")
		return 1
	}
	hook, err := ShellHook(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Print(hook)
	return 0
}

func emitCDMarkerIfEnabled(cfg Config, path string) {
	if cfg.EmitCDMarker {
		fmt.Println(cdMarkerPrefix + path)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `canopy - parallel worktree workspaces with assistant sessions

Usage:
  canopy list [--json]
  canopy new <branch> [--from <ref>] [--path <dir>] [--no-link]
  canopy rm <branch-or-path> [--delete-branch]
  canopy spawn <branch-or-path>
  canopy focus <branch-or-path>
  canopy kill <branch-or-path>
  canopy sessions [--json]
  canopy open <branch-or-path>
  canopy link <source-root> <dest-root>
  canopy serve [--addr <host:port>]
  canopy doctor
  canopy shell-hook <zsh|bash|fish>
  canopy version
  canopy help

Examples:
  canopy new feature-1
  canopy spawn feature-1
  canopy rm feature-1 --delete-branch
  eval "$(canopy shell-hook zsh)"
`)
}
