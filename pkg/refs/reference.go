// Package refs models resource references found in stylesheets and markup,
// and implements the extraction, resolution, and dedup stages that turn raw
// file text into an ordered, upload-ready reference list.
package refs

// Kind classifies where a reference was found.
type Kind int

const (
	KindCSSURL Kind = iota
	KindHTMLImg
	KindHTMLScript
	KindHTMLLink
)

func (k Kind) String() string {
	switch k {
	case KindCSSURL:
		return "css-url"
	case KindHTMLImg:
		return "html-img"
	case KindHTMLScript:
		return "html-script"
	case KindHTMLLink:
		return "html-link"
	default:
		return "unknown"
	}
}

// UploadResult is the settled outcome of one upload, shared by every
// reference with the same identity.
type UploadResult struct {
	URL          string
	PublicID     string
	ResourceKind string
	Err          error
}

// OK reports whether the upload produced a URL.
func (r UploadResult) OK() bool { return r.Err == nil && r.URL != "" }

// Reference is one occurrence of a resource mention inside one file.
type Reference struct {
	Kind Kind
	// Owner is the path of the file the reference was found in. Remapping
	// between phases may redirect it to a destination path.
	Owner string
	// MatchedText is the exact substring matched, including syntax such as
	// url(...) or the opening tag up to the attribute value.
	MatchedText string
	// Written is the attribute or url() value exactly as it appears.
	Written string
	// RawPath is Written without fragment and query.
	RawPath string
	// TransformSuffix is the query portion of a css-url reference.
	TransformSuffix string
	// HasQuery records a "?" in a css-url value, even with nothing after it.
	HasQuery bool
	Fragment        string

	Identity string
	Remote   bool
	// Found is false when no candidate path exists on disk.
	Found    bool
	Eligible bool

	Result *UploadResult
}

// SourceFile is one input file undergoing rewrite in a phase.
type SourceFile struct {
	SourcePath string
	DestPath   string
	// ReadPath is where the content to rewrite is read from: the source in
	// phase 1, the phase-1 destination in phase 2.
	ReadPath string
	Refs     []*Reference
}

// Phase is one extract→filter→upload→rewrite pass over a reference subset.
type Phase struct {
	Number int
	Files  []*SourceFile
}

// References flattens the phase's references, grouped by file in extraction order.
func (p *Phase) References() []*Reference {
	var out []*Reference
	for _, f := range p.Files {
		out = append(out, f.Refs...)
	}
	return out
}

// Eligible returns the references that need an upload.
func (p *Phase) Eligible() []*Reference {
	var out []*Reference
	for _, f := range p.Files {
		for _, r := range f.Refs {
			if r.Eligible {
				out = append(out, r)
			}
		}
	}
	return out
}
