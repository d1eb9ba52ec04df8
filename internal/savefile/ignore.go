package savefile

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Ignore excludes save files by doublestar glob. A pattern without a slash is matched against the
// file name only, anything else against the whole slash-separated path with the leading slash
// dropped from both sides.
type Ignore struct {
	patterns []string
}

func NewIgnore(patterns []string) (*Ignore, error) {
	ig := &Ignore{}
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
		ig.patterns = append(ig.patterns, p)
	}
	return ig, nil
}

// Match reports whether path is excluded. A nil Ignore excludes nothing.
func (ig *Ignore) Match(p string) bool {
	if ig == nil {
		return false
	}
	p = strings.TrimLeft(filepath.ToSlash(p), "/")
	base := path.Base(p)
	for _, pattern := range ig.patterns {
		target := p
		if !strings.Contains(pattern, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(strings.TrimLeft(pattern, "/"), target); ok {
			return true
		}
	}
	return false
}

// Tracked reports whether path is a save file that is not excluded.
func (ig *Ignore) Tracked(p string) bool {
	return IsSaveFile(p) && !ig.Match(p)
}

func (ig *Ignore) Patterns() []string {
	if ig == nil {
		return nil
	}
	return append([]string(nil), ig.patterns...)
}
