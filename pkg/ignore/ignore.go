// Package ignore provides gitignore-based file filtering using go-git
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the project-level ignore file read next to .gitignore.
const FileName = ".cloudrefignore"

var defaultPatterns = []string{".git/", "node_modules/"}

// Matcher answers whether a path under root is ignored.
type Matcher struct {
	root    string
	matcher gitignore.Matcher
}

// NewMatcher layers ignore sources under root:
// 1. built-in defaults (.git, node_modules)
// 2. .gitignore files and .git/info/exclude
// 3. .cloudrefignore at root
func NewMatcher(root string) (*Matcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, p := range defaultPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	if gitPatterns, err := gitignore.ReadPatterns(osfs.New(abs), nil); err == nil {
		patterns = append(patterns, gitPatterns...)
	}

	if own, err := readIgnoreFile(filepath.Join(abs, FileName)); err == nil {
		for _, p := range own {
			patterns = append(patterns, gitignore.ParsePattern(p, nil))
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return &Matcher{root: abs, matcher: gitignore.NewMatcher(patterns)}, nil
}

// readIgnoreFile reads patterns from a gitignore-syntax text file
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed name under the project root
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// IsIgnored reports whether the file at path is ignored. Paths outside root
// are never ignored.
func (m *Matcher) IsIgnored(path string) bool {
	return m.match(path, false)
}

// IsIgnoredDir reports whether the directory at path is ignored.
func (m *Matcher) IsIgnoredDir(path string) bool {
	return m.match(path, true)
}

func (m *Matcher) match(path string, isDir bool) bool {
	if m == nil {
		return false
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root, path)
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	parts := splitPath(filepath.ToSlash(rel))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
