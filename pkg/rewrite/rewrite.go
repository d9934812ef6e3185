// Package rewrite substitutes uploaded URLs back into source files.
package rewrite

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/fulmenhq/cloudref/pkg/logger"
	"github.com/fulmenhq/cloudref/pkg/refs"
	"github.com/fulmenhq/cloudref/pkg/safeio"
	"github.com/fulmenhq/cloudref/pkg/store"
	"github.com/fulmenhq/cloudref/pkg/upload"
)

// Status describes what happened to one reference during rewrite.
type Status string

const (
	StatusRewritten Status = "rewritten"
	// StatusRemote references are left as written.
	StatusRemote Status = "remote"
	// StatusFailed references had no usable upload result.
	StatusFailed Status = "failed"
	// StatusRepeated references repeat a matched text already handled in the same file.
	StatusRepeated Status = "repeated"
)

// RefOutcome records the rewrite of one reference.
type RefOutcome struct {
	Ref     *refs.Reference
	Status  Status
	NewText string
	Reason  string
}

// FileOutcome records the rewrite of one file.
type FileOutcome struct {
	Source        string
	Dest          string
	Substitutions int
	Refs          []RefOutcome
}

// Engine rewrites files through a filesystem collaborator.
type Engine struct {
	fs            safeio.FS
	removeVersion bool
}

// New builds an Engine. With removeVersionSegment set, /v<digits>/ is dropped
// from returned URLs.
func New(fs safeio.FS, removeVersionSegment bool) *Engine {
	return &Engine{fs: fs, removeVersion: removeVersionSegment}
}

// Apply rewrites each file from its ReadPath into its DestPath. Every file is
// written exactly once, including files without references.
func (e *Engine) Apply(files []*refs.SourceFile, results upload.Results) ([]FileOutcome, error) {
	outcomes := make([]FileOutcome, 0, len(files))
	for _, f := range files {
		out, err := e.applyFile(f, results)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (e *Engine) applyFile(f *refs.SourceFile, results upload.Results) (FileOutcome, error) {
	out := FileOutcome{Source: f.SourcePath, Dest: f.DestPath}

	content, err := e.fs.ReadText(f.ReadPath)
	if err != nil {
		return out, fmt.Errorf("read %s: %w", f.ReadPath, err)
	}

	seen := make(map[string]struct{}, len(f.Refs))
	var pairs []substitution

	for _, ref := range f.Refs {
		if _, dup := seen[ref.MatchedText]; dup {
			out.Refs = append(out.Refs, RefOutcome{Ref: ref, Status: StatusRepeated})
			continue
		}
		seen[ref.MatchedText] = struct{}{}

		logger.Info("> " + ref.MatchedText)
		if ref.Remote {
			logger.Info("  no change, remote reference")
			out.Refs = append(out.Refs, RefOutcome{Ref: ref, Status: StatusRemote})
			continue
		}

		res, ok := results[ref.Identity]
		if !ok || !res.OK() {
			reason := "no upload result"
			if res.Err != nil {
				reason = res.Err.Error()
			}
			logger.Info("  no change, because of error", logger.String("reason", reason))
			out.Refs = append(out.Refs, RefOutcome{Ref: ref, Status: StatusFailed, Reason: reason})
			continue
		}

		target := e.SubstitutionURL(ref, res)
		newText := replaceValue(ref.MatchedText, ref.Written, target)
		logger.Info("  to " + target)
		pairs = append(pairs, substitution{from: ref.MatchedText, to: newText})
		out.Refs = append(out.Refs, RefOutcome{Ref: ref, Status: StatusRewritten, NewText: newText})
	}

	if len(pairs) > 0 {
		// One left-to-right pass: replaced output is never scanned again.
		content = newReplacer(pairs).Replace(content)
		out.Substitutions = len(pairs)
	}

	if err := e.fs.WriteText(f.DestPath, content); err != nil {
		return out, fmt.Errorf("write %s: %w", f.DestPath, err)
	}
	logger.Debug("wrote "+f.DestPath, logger.Int("substitutions", out.Substitutions))
	return out, nil
}

type substitution struct {
	from, to string
}

// newReplacer orders pairs longest match first. The Replacer tries pairs in
// argument order at each position, and an unquoted attribute match such as
// `<img src=logo.png` is a prefix of `<img src=logo.png.webp`.
func newReplacer(pairs []substitution) *strings.Replacer {
	sorted := slices.Clone(pairs)
	slices.SortStableFunc(sorted, func(a, b substitution) int {
		return len(b.from) - len(a.from)
	})
	args := make([]string, 0, 2*len(sorted))
	for _, p := range sorted {
		args = append(args, p.from, p.to)
	}
	return strings.NewReplacer(args...)
}

var versionSegment = regexp.MustCompile(`/v\d+/`)

const imageUploadMarker = "/image/upload/"

// SubstitutionURL derives the text that replaces ref's written value.
func (e *Engine) SubstitutionURL(ref *refs.Reference, res refs.UploadResult) string {
	u := res.URL
	if e.removeVersion {
		u = StripVersion(u)
	}
	switch {
	case ref.TransformSuffix != "":
		if res.ResourceKind == string(store.KindImage) && strings.Contains(u, imageUploadMarker) {
			u = strings.Replace(u, imageUploadMarker, imageUploadMarker+ref.TransformSuffix+"/", 1)
		} else {
			u += "?" + ref.TransformSuffix
		}
	case ref.HasQuery:
		// An empty query is kept as written, e.g. font.eot?#iefix.
		u += "?"
	}
	if ref.Fragment != "" {
		u += "#" + ref.Fragment
	}
	return u
}

// StripVersion removes the first /v<digits>/ segment.
func StripVersion(u string) string {
	loc := versionSegment.FindStringIndex(u)
	if loc == nil {
		return u
	}
	return u[:loc[0]] + "/" + u[loc[1]:]
}

// replaceValue swaps the written value inside matched. The value sits at the
// end of the match, so the last occurrence is the one to replace.
func replaceValue(matched, written, target string) string {
	i := strings.LastIndex(matched, written)
	if i < 0 {
		return matched
	}
	return matched[:i] + target + matched[i+len(written):]
}
