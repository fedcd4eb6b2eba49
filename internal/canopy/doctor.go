package canopy

import (
	"fmt"
	"os"
	"strings"
)

type DoctorReport struct {
	Lines    []string
	ExitCode int
}

// Doctor reports on required tools and stale workspace bookkeeping.
func (m *Manager) Doctor() DoctorReport {
	report := DoctorReport{Lines: []string{}}

	if commandExists("git") {
		report.Lines = append(report.Lines, "ok   git")
	} else {
		report.Lines = append(report.Lines, "miss git")
		report.ExitCode = 1
	}

	assistant := strings.Fields(m.Cfg.AssistantCommand)
	if len(assistant) > 0 {
		if commandExists(assistant[0]) {
			report.Lines = append(report.Lines, fmt.Sprintf("ok   %s", assistant[0]))
		} else {
			report.Lines = append(report.Lines, fmt.Sprintf("warn %s (assistant command not found)", assistant[0]))
		}
	}

	repoRoot, err := m.RequireRepo()
	if err != nil {
		report.Lines = append(report.Lines, "warn not inside a git repository; skipped workspace checks")
		return report
	}

	items, err := m.listWorkspaces(repoRoot)
	if err != nil {
		report.Lines = append(report.Lines, fmt.Sprintf("warn unable to parse workspaces: %v", err))
		return report
	}
	bad := false
	for _, ws := range items {
		if st, err := os.Stat(ws.Path); err != nil || !st.IsDir() {
			report.Lines = append(report.Lines, fmt.Sprintf("warn missing workspace path: %s (run canopy rm or git worktree prune)", ws.Path))
			bad = true
			continue
		}
		if ws.Branch != "" && !m.BranchExists(repoRoot, ws.Branch) {
			report.Lines = append(report.Lines, fmt.Sprintf("warn branch missing for workspace %s: %s", ws.Path, ws.Branch))
			bad = true
		}
	}
	if !bad {
		report.Lines = append(report.Lines, "ok   workspace metadata")
	}
	return report
}
