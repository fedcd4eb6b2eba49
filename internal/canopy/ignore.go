package canopy

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PatternSet holds the literal entry names extracted from an ignore file.
// Matching is by exact name only: wildcard patterns like *.log and nested
// paths like build/out never equal a single directory entry name, so they
// simply never match. That trade keeps the linker precise about what it
// grafts into a new workspace at the cost of glob coverage.
type PatternSet struct {
	names map[string]struct{}
}

// LoadPatternSet reads the ignore file at the workspace root. A missing file
// yields an empty set, which makes the link planner a no-op.
func LoadPatternSet(root string) (*PatternSet, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return &PatternSet{names: map[string]struct{}{}}, nil
		}
		return nil, err
	}
	defer f.Close()
	return ParsePatternSet(f)
}

func ParsePatternSet(r io.Reader) (*PatternSet, error) {
	set := &PatternSet{names: map[string]struct{}{}}
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := strings.ReplaceAll(line, "\\", "/")
		name = strings.Trim(name, "/")
		if name == "" {
			continue
		}
		set.names[name] = struct{}{}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *PatternSet) Match(name string) bool {
	_, ok := s.names[name]
	return ok
}

func (s *PatternSet) Len() int {
	return len(s.names)
}
