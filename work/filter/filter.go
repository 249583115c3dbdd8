// Package filter applies include/exclude name filters to imported camera
// entries.
package filter

import (
	"fmt"

	"github.com/grafana/regexp"

	"nvr-kiosk/work/parser"
)

// NameFilter keeps entries whose names match the include pattern (when set)
// and do not match the exclude pattern (when set).
type NameFilter struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// New compiles a name filter. Empty patterns mean no restriction on that
// side; both empty yields a pass-through filter.
func New(includePattern, excludePattern string) (*NameFilter, error) {
	f := &NameFilter{}
	var err error
	if includePattern != "" {
		if f.include, err = regexp.Compile("(?i)" + includePattern); err != nil {
			return nil, fmt.Errorf("invalid include pattern: %w", err)
		}
	}
	if excludePattern != "" {
		if f.exclude, err = regexp.Compile("(?i)" + excludePattern); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
	}
	return f, nil
}

// Match reports whether a camera name passes the filter.
func (f *NameFilter) Match(name string) bool {
	if f.include != nil && !f.include.MatchString(name) {
		return false
	}
	if f.exclude != nil && f.exclude.MatchString(name) {
		return false
	}
	return true
}

// Apply returns the entries whose names pass the filter.
func (f *NameFilter) Apply(entries []parser.CameraEntry) []parser.CameraEntry {
	out := make([]parser.CameraEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e.Name) {
			out = append(out, e)
		}
	}
	return out
}
