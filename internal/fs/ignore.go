package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns are always applied regardless of config or .reelignore.
// Partial downloads and sample clips are never library items.
var defaultIgnorePatterns = []string{
	IgnoreFileName,
	"*.part",
	"*.crdownload",
	"sample/",
	"*-sample.*",
}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // match against relative path; otherwise basename only
	dirOnly   bool // trailing '/': only directories match
	negate    bool // leading '!': re-include a previously ignored entry
}

// IgnoreMatcher checks relative paths against a set of ignore patterns.
// Patterns without '/' match a basename. Patterns with '/' match the full
// path relative to the scan root. A trailing '/' restricts a pattern to
// directories and a leading '!' re-includes. The last matching pattern wins.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{}
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			raw = raw[1:]
		}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		raw = strings.TrimPrefix(raw, "/")
		if raw == "" {
			continue
		}
		p.pattern = strings.ToLower(raw)
		p.matchPath = strings.Contains(raw, "/")
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the file at relativePath should be ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	return m.match(relativePath, false)
}

// MatchDir reports whether the directory at relativePath should be skipped.
func (m *IgnoreMatcher) MatchDir(relativePath string) bool {
	return m.match(relativePath, true)
}

// match is case-insensitive; media trees copied from other systems mix case
// freely.
func (m *IgnoreMatcher) match(relativePath string, isDir bool) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	normalized := strings.ToLower(filepath.ToSlash(relativePath))
	basename := strings.ToLower(filepath.Base(relativePath))

	ignored := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		target := basename
		if p.matchPath {
			target = normalized
		}
		matched, err := filepath.Match(p.pattern, target)
		if err != nil || !matched {
			continue
		}
		ignored = !p.negate
	}
	return ignored
}

// ParseIgnoreFile reads a .reelignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
