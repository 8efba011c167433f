// Package staging manages the transient local area the traditional
// transfer path stages objects through. Scopes are per descriptor, never
// shared between workers, and released on every exit path so partial
// failures cannot leak disk space.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Area is the root staging directory for one batch. Removed wholesale when
// the batch finishes, catching anything a scope failed to release.
type Area struct {
	root string
}

// NewArea creates a fresh batch-scoped staging root under baseDir (or the
// system temp dir when empty).
func NewArea(baseDir string) (*Area, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	root, err := os.MkdirTemp(baseDir, "transfer-stage-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging area: %w", err)
	}
	return &Area{root: root}, nil
}

// Root returns the staging root path.
func (a *Area) Root() string { return a.root }

// Close removes the whole area and everything under it.
func (a *Area) Close() error {
	return os.RemoveAll(a.root)
}

// Scope is the staging directory for a single descriptor.
type Scope struct {
	dir      string
	released bool
}

// Acquire creates a descriptor-scoped directory. The label only aids
// debugging of leftover directories; uniqueness comes from MkdirTemp.
func (a *Area) Acquire(label string) (*Scope, error) {
	dir, err := os.MkdirTemp(a.root, sanitize(label)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to acquire staging scope: %w", err)
	}
	return &Scope{dir: dir}, nil
}

// Path returns the staging path for a file inside the scope.
func (s *Scope) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Release removes the scope. Safe to call more than once; callers defer it
// so cleanup survives every exit path, including panics and cancellation.
func (s *Scope) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	return os.RemoveAll(s.dir)
}

func sanitize(label string) string {
	label = filepath.Base(label)
	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, label)
	if len(label) > 40 {
		label = label[:40]
	}
	if label == "" {
		label = "object"
	}
	return label
}
