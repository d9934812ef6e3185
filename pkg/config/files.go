package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/cloudref/internal/pipeline"
	"github.com/fulmenhq/cloudref/pkg/ignore"
)

// ExpandFiles turns declared groups into source/destination pairs, in
// declaration order. Glob patterns are matched against baseDir and skip
// files the matcher ignores; literal paths are kept even when missing so
// the run can report them. A dest ending in "/" receives each source under
// its path relative to the pattern's static prefix; otherwise a group must
// resolve to one source.
func ExpandFiles(groups []FileGroup, baseDir string, skip *ignore.Matcher) ([]pipeline.Mapping, error) {
	var out []pipeline.Mapping
	for i, g := range groups {
		sources, err := expandSources(g.Src, baseDir, skip)
		if err != nil {
			return nil, fmt.Errorf("files[%d]: %w", i, err)
		}

		dirDest := strings.HasSuffix(g.Dest, "/") || strings.HasSuffix(g.Dest, string(filepath.Separator))
		if !dirDest && len(sources) > 1 {
			return nil, fmt.Errorf("files[%d]: %d sources match but dest %q is a single file; end dest with / to write a directory", i, len(sources), g.Dest)
		}

		for _, s := range sources {
			dest := g.Dest
			if dirDest {
				dest = filepath.Join(g.Dest, s.rel)
			}
			out = append(out, pipeline.Mapping{Source: s.path, Dest: resolveAgainst(baseDir, dest)})
		}
	}
	return out, nil
}

type source struct {
	path string
	rel  string
}

func expandSources(patterns []string, baseDir string, skip *ignore.Matcher) ([]source, error) {
	var includes, excludes []string
	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			excludes = append(excludes, filepath.ToSlash(rest))
			continue
		}
		includes = append(includes, filepath.ToSlash(p))
	}

	seen := make(map[string]struct{})
	var out []source
	add := func(path, rel, matchPath string) {
		if isExcluded(matchPath, excludes) {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		out = append(out, source{path: path, rel: rel})
	}

	for _, pattern := range includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		base, _ := doublestar.SplitPattern(pattern)

		if !hasMeta(pattern) {
			abs := resolveAgainst(baseDir, pattern)
			add(abs, filepath.Base(abs), relTo(baseDir, abs))
			continue
		}

		matches, err := doublestar.FilepathGlob(resolveAgainst(baseDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		absBase := resolveAgainst(baseDir, base)
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() || skip.IsIgnored(m) {
				continue
			}
			rel, err := filepath.Rel(absBase, m)
			if err != nil {
				rel = filepath.Base(m)
			}
			add(m, rel, relTo(baseDir, m))
		}
	}
	return out, nil
}

func isExcluded(rel string, excludes []string) bool {
	for _, ex := range excludes {
		if ok, _ := doublestar.Match(strings.TrimPrefix(ex, "./"), rel); ok {
			return true
		}
	}
	return false
}

// relTo returns p relative to baseDir in slash form, or p itself when it
// lies outside baseDir.
func relTo(baseDir, p string) string {
	rel, err := filepath.Rel(baseDir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func resolveAgainst(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, filepath.FromSlash(p))
}
