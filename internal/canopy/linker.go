package canopy

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LinkTask is one ignored-target entry to graft from the source tree into a
// new workspace at the same relative path.
type LinkTask struct {
	Source string
	Dest   string
	IsDir  bool
}

type LinkReport struct {
	Linked   int
	Copied   int
	Skipped  int
	Deferred []LinkTask
}

// LinkArtifacts walks the source tree and links every entry whose name is
// listed in the source root's ignore file into destRoot, so heavy regenerable
// trees (dependency caches, build outputs) are shared instead of rebuilt.
// Linked directories are never descended into, and destinations that already
// exist are skipped, so the pass is safe to re-run. Directory links that fail
// on privilege are collected and retried once as a single elevated batch.
//
// Callers must not run two passes against the same destRoot concurrently:
// both would race on the destination existence checks.
func (m *Manager) LinkArtifacts(sourceRoot, destRoot string) (*LinkReport, error) {
	patterns, err := LoadPatternSet(sourceRoot)
	if err != nil {
		return nil, err
	}
	report := &LinkReport{}
	if patterns.Len() == 0 {
		return report, nil
	}

	exclude := map[string]struct{}{}
	for _, name := range m.Cfg.LinkExclude {
		exclude[name] = struct{}{}
	}

	err = filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			debugLogf("link walk error path=%q err=%v", path, err)
			return nil
		}
		if path == sourceRoot {
			return nil
		}
		name := d.Name()
		if name == ".git" {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !patterns.Match(name) {
			return nil
		}
		if _, excluded := exclude[name]; excluded {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(sourceRoot, path)
		if relErr != nil {
			return relErr
		}
		dest := filepath.Join(destRoot, rel)
		if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
			debugLogf("link mkdir failed dest=%q err=%v", dest, mkErr)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if _, statErr := os.Lstat(dest); statErr == nil {
			report.Skipped++
		} else {
			m.executeLinkTask(LinkTask{Source: path, Dest: dest, IsDir: d.IsDir()}, report)
		}
		if d.IsDir() {
			// Never walk inside a link target, linked or pre-existing.
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if len(report.Deferred) > 0 {
		if batchErr := runElevatedLinkBatch(report.Deferred); batchErr != nil {
			// The affected directories stay unlinked; the workspace is still
			// usable, it just regenerates those trees on first build.
			debugLogf("elevated link batch failed tasks=%d err=%v", len(report.Deferred), batchErr)
		}
	}
	return report, nil
}

func (m *Manager) executeLinkTask(task LinkTask, report *LinkReport) {
	if task.IsDir {
		if err := linkDirectory(task.Source, task.Dest); err != nil {
			debugLogf("link dir deferred src=%q dst=%q err=%v", task.Source, task.Dest, err)
			report.Deferred = append(report.Deferred, task)
			return
		}
		report.Linked++
		return
	}

	// Files fall through symlink, hard link, byte copy. Copy is the terminal
	// fallback and never defers.
	if err := os.Symlink(task.Source, task.Dest); err == nil {
		report.Linked++
		return
	}
	if err := os.Link(task.Source, task.Dest); err == nil {
		report.Linked++
		return
	}
	info, err := os.Stat(task.Source)
	if err != nil {
		debugLogf("link stat failed src=%q err=%v", task.Source, err)
		return
	}
	if err := copyFile(task.Source, task.Dest, info); err != nil {
		debugLogf("link copy failed src=%q dst=%q err=%v", task.Source, task.Dest, err)
		return
	}
	report.Copied++
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, time.Now(), info.ModTime())
}
