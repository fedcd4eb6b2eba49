package canopy

// ProcessController abstracts the OS process and window operations a session
// needs: launching the assistant detached in a workspace, probing whether a
// pid still exists, raising its window, and killing the whole process tree.
// One implementation per platform, selected at build time, so the supervisor
// itself carries no GOOS branches.
type ProcessController interface {
	SpawnInteractive(workdir, command string) (int, error)
	ProbeAlive(pid int) bool
	ActivateWindow(pid int) error
	TerminateTree(pid int) error
	OpenDirectory(path string) error
}
