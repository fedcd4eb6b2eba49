package canopy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Session binds one workspace path to one assistant process. The pid is a
// weak reference: the process can die on its own at any time, and the table
// self-heals on the next List sweep instead of trusting stored pids.
type Session struct {
	Path      string    `json:"path"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	LastEvent time.Time `json:"last_event,omitempty"`
}

// Supervisor owns the workspace-path → session table. One coarse mutex
// serializes every operation, probes included; with single-digit session
// counts that is simpler and safer than per-entry locking.
//
// Construct it once at startup and pass it into every handler that needs it.
type Supervisor struct {
	mu        sync.Mutex
	proc      ProcessController
	command   string
	table     map[string]*Session
	statePath string
}

// NewSupervisor builds the table once at startup, reloading any sessions a
// previous invocation registered. Stored pids are still only hints; every
// List sweep re-probes them.
func NewSupervisor(assistantCommand string) *Supervisor {
	s := newSupervisorWith(newProcessController(), assistantCommand)
	if home, err := os.UserHomeDir(); err == nil {
		s.statePath = filepath.Join(home, ".config", "canopy", "sessions.json")
		s.loadState()
	}
	return s
}

func newSupervisorWith(proc ProcessController, assistantCommand string) *Supervisor {
	return &Supervisor{
		proc:    proc,
		command: assistantCommand,
		table:   map[string]*Session{},
	}
}

func (s *Supervisor) loadState() {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		debugLogf("session state unreadable path=%q: %v", s.statePath, err)
		return
	}
	for i := range sessions {
		sess := sessions[i]
		s.table[sess.Path] = &sess
	}
}

// saveState is best-effort; a failed write only loses cross-invocation
// tracking, never a running process. Caller holds the lock.
func (s *Supervisor) saveState() {
	if s.statePath == "" {
		return
	}
	sessions := make([]Session, 0, len(s.table))
	for _, sess := range s.table {
		sessions = append(sessions, *sess)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Path < sessions[j].Path })
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(s.statePath, data, 0o644); err != nil {
		debugLogf("session state write failed path=%q: %v", s.statePath, err)
	}
}

// Spawn launches the assistant rooted at workspacePath and registers it. If a
// registered process for the path is still alive the call is refused; a dead
// leftover entry is replaced silently.
func (s *Supervisor) Spawn(workspacePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.table[workspacePath]; ok && s.proc.ProbeAlive(prev.PID) {
		return fmt.Errorf("assistant already running for %s (pid %d)", workspacePath, prev.PID)
	}

	pid, err := s.proc.SpawnInteractive(workspacePath, s.command)
	if err != nil {
		return &SpawnError{Path: workspacePath, Err: err}
	}
	s.table[workspacePath] = &Session{Path: workspacePath, PID: pid, StartedAt: time.Now()}
	s.saveState()
	debugLogf("session spawned path=%q pid=%d", workspacePath, pid)
	return nil
}

// Focus raises the assistant window for the path. The window manager reports
// "not activated" ambiguously for already-focused windows, so that outcome is
// success; a dead process is only reaped by the next List call.
func (s *Supervisor) Focus(workspacePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.table[workspacePath]
	if !ok {
		return ErrNoSession
	}
	return s.proc.ActivateWindow(sess.PID)
}

// List sweeps the table, drops every entry whose process no longer exists,
// and returns the remaining sessions sorted by path. This is the only place
// dead entries are reaped; callers are expected to invoke it periodically.
func (s *Supervisor) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, 0, len(s.table))
	for path, sess := range s.table {
		if !s.proc.ProbeAlive(sess.PID) {
			debugLogf("session reaped path=%q pid=%d", path, sess.PID)
			delete(s.table, path)
			continue
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	s.saveState()
	return out
}

// Kill terminates the assistant tree for the path. The table entry is dropped
// even when termination reports an error: either way the process is no longer
// tracked, which is the goal. Killing an unregistered path is a no-op.
func (s *Supervisor) Kill(workspacePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.table[workspacePath]
	if !ok {
		return nil
	}
	if err := s.proc.TerminateTree(sess.PID); err != nil {
		debugLogf("session kill path=%q pid=%d reported: %v", workspacePath, sess.PID, err)
	}
	delete(s.table, workspacePath)
	s.saveState()
	return nil
}

// Touch records assistant activity for the path, fed by the status bridge.
// An event for an unregistered path is ignored: the bridge only hints, it
// never creates sessions.
func (s *Supervisor) Touch(workspacePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.table[workspacePath]; ok {
		sess.LastEvent = time.Now()
	}
}

// OpenDirectory opens the workspace in the OS file manager.
func (s *Supervisor) OpenDirectory(path string) error {
	return s.proc.OpenDirectory(path)
}
