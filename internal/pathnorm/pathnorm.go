// Package pathnorm maps source file paths to stable, comparable strings.
package pathnorm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Normalizer turns paths into the form stored in the tag index: relative to a
// fixed working directory when the file lives under it, otherwise the canonical
// absolute path with symlinks resolved. Safe for concurrent use.
type Normalizer struct {
	wd    string
	mu    sync.RWMutex
	cache map[string]string
}

// New returns a Normalizer bound to the process working directory.
func New() (*Normalizer, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	return NewAt(wd), nil
}

// NewAt returns a Normalizer bound to wd. A relative wd is made absolute.
func NewAt(wd string) *Normalizer {
	if abs, err := filepath.Abs(wd); err == nil {
		wd = abs
	}
	return &Normalizer{wd: filepath.Clean(wd), cache: make(map[string]string)}
}

// Dir returns the working directory paths are made relative to.
func (n *Normalizer) Dir() string {
	return n.wd
}

// Normalize returns the stored form of path.
func (n *Normalizer) Normalize(path string) string {
	n.mu.RLock()
	out, ok := n.cache[path]
	n.mu.RUnlock()
	if ok {
		return out
	}

	out = n.normalize(path)

	n.mu.Lock()
	n.cache[path] = out
	n.mu.Unlock()
	return out
}

func (n *Normalizer) normalize(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(n.wd, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(n.wd, abs)
	if err == nil && !escapes(rel) {
		return rel
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Unresolvable (e.g. the file no longer exists): the cleaned absolute
		// path is still stable for this working directory.
		return abs
	}
	return real
}

// escapes reports whether rel contains a parent-directory segment.
func escapes(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
