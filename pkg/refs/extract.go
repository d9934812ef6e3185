package refs

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUnsupportedExtension is returned for files that are neither css nor html.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// Extraction is the result of scanning one file. Assets are resolved and
// uploaded in phase 1; Links wait for phase 2 because their targets are often
// stylesheets rewritten in phase 1.
type Extraction struct {
	Assets []*Reference
	Links  []*Reference
}

// Extractor scans one file's text for references. Implementations use
// targeted patterns rather than a full parse tree.
type Extractor interface {
	Name() string
	CanHandle(path string) bool
	Extract(path, content string) Extraction
}

// DefaultExtractors returns the built-in extractors in selection order.
func DefaultExtractors() []Extractor {
	return []Extractor{CSSExtractor{}, HTMLExtractor{}}
}

// ExtractorFor picks the first extractor from candidates that handles path.
// With no candidates the defaults are used.
func ExtractorFor(path string, candidates ...Extractor) (Extractor, error) {
	if len(candidates) == 0 {
		candidates = DefaultExtractors()
	}
	for _, ex := range candidates {
		if ex.CanHandle(path) {
			return ex, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, path)
}

func extOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// cssURLPattern matches url(...) with optional quoting and inner whitespace.
var cssURLPattern = regexp.MustCompile(`(?i)url\s*\(\s*(?:"([^"]*)"|'([^']*)'|([^)"'\s]*))\s*\)`)

// CSSExtractor finds url(...) references in stylesheets.
type CSSExtractor struct{}

func (CSSExtractor) Name() string { return "css" }

func (CSSExtractor) CanHandle(path string) bool { return extOf(path) == "css" }

func (CSSExtractor) Extract(path, content string) Extraction {
	return Extraction{Assets: scan(cssURLPattern, KindCSSURL, path, content)}
}

func tagPattern(tag, attr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)<` + tag + `\b[^>]*?\s` + attr + `\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
}

var (
	imgPattern    = tagPattern("img", "src")
	scriptPattern = tagPattern("script", "src")
	linkPattern   = tagPattern("link", "href")
)

// HTMLExtractor finds <img src>, <script src> and <link href> references.
type HTMLExtractor struct{}

func (HTMLExtractor) Name() string { return "html" }

func (HTMLExtractor) CanHandle(path string) bool {
	switch extOf(path) {
	case "html", "htm":
		return true
	}
	return false
}

func (HTMLExtractor) Extract(path, content string) Extraction {
	var out Extraction
	out.Assets = append(out.Assets, scan(imgPattern, KindHTMLImg, path, content)...)
	out.Assets = append(out.Assets, scan(scriptPattern, KindHTMLScript, path, content)...)
	out.Links = scan(linkPattern, KindHTMLLink, path, content)
	return out
}

func scan(re *regexp.Regexp, kind Kind, path, content string) []*Reference {
	var out []*Reference
	for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
		written := ""
		for g := 1; g <= 3; g++ {
			if m[2*g] >= 0 {
				written = content[m[2*g]:m[2*g+1]]
				break
			}
		}
		if ref := newReference(kind, path, content[m[0]:m[1]], written); ref != nil {
			out = append(out, ref)
		}
	}
	return out
}

func newReference(kind Kind, owner, matched, written string) *Reference {
	value := strings.TrimSpace(written)
	// In-document anchors such as url(#gradient) are not resources.
	if value == "" || strings.HasPrefix(value, "#") {
		return nil
	}
	ref := &Reference{
		Kind:        kind,
		Owner:       owner,
		MatchedText: matched,
		Written:     value,
		RawPath:     value,
		Eligible:    true,
	}
	if IsRemote(value) {
		return ref
	}
	if i := strings.Index(ref.RawPath, "#"); i > 0 {
		ref.Fragment = ref.RawPath[i+1:]
		ref.RawPath = ref.RawPath[:i]
	}
	if i := strings.Index(ref.RawPath, "?"); i > 0 {
		if kind == KindCSSURL {
			ref.TransformSuffix = ref.RawPath[i+1:]
			ref.HasQuery = true
		}
		ref.RawPath = ref.RawPath[:i]
	}
	return ref
}

var remotePrefixes = []string{"http:", "https:", "data:", "//"}

// IsRemote reports whether a raw reference points outside the local filesystem.
func IsRemote(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range remotePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
