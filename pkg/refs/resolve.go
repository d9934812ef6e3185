package refs

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// existence is the slice of the filesystem collaborator the resolver needs.
type existence interface {
	Exists(path string) bool
}

// Resolution is the canonical identity of one raw path.
type Resolution struct {
	Identity string
	Remote   bool
	Found    bool
}

// Resolver turns raw reference strings into absolute identities. The
// referencing file's own directory is tried first, then each root in order.
type Resolver struct {
	roots []string
	fs    existence
}

// NewResolver makes roots absolute once so resolution stays stable if the
// working directory is later changed.
func NewResolver(roots []string, fs existence) (*Resolver, error) {
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		a, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", r, err)
		}
		abs = append(abs, a)
	}
	return &Resolver{roots: abs, fs: fs}, nil
}

// Roots returns the absolute root directories in configured order.
func (r *Resolver) Roots() []string {
	return append([]string(nil), r.roots...)
}

// Resolve computes the identity of rawPath as referenced from referencingFile.
// When no candidate exists the directory-relative path is returned with
// Found=false so the failure surfaces later with a concrete path.
func (r *Resolver) Resolve(rawPath, referencingFile string) Resolution {
	if IsRemote(rawPath) {
		return Resolution{Identity: rawPath, Remote: true}
	}

	rel := filepath.FromSlash(unescape(rawPath))
	dirCandidate := absJoin(filepath.Dir(referencingFile), rel)
	if r.fs.Exists(dirCandidate) {
		return Resolution{Identity: dirCandidate, Found: true}
	}
	for _, root := range r.roots {
		candidate := absJoin(root, rel)
		if r.fs.Exists(candidate) {
			return Resolution{Identity: candidate, Found: true}
		}
	}
	return Resolution{Identity: dirCandidate}
}

// ResolveAll annotates refs in place.
func (r *Resolver) ResolveAll(list []*Reference) {
	for _, ref := range list {
		res := r.Resolve(ref.RawPath, ref.Owner)
		ref.Identity = res.Identity
		ref.Remote = res.Remote
		ref.Found = res.Found
	}
}

func absJoin(base, rel string) string {
	p := filepath.Join(base, rel)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// unescape decodes percent-escapes such as %20; malformed input is used verbatim.
func unescape(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}
