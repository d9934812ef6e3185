// Package report renders a run summary as YAML, JSON or TOML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/cloudref/internal/pipeline"
	"github.com/fulmenhq/cloudref/pkg/safeio"
)

// Report is the serialisable form of a run.
type Report struct {
	State   string    `yaml:"state" json:"state" toml:"state"`
	Skipped []Skipped `yaml:"skipped,omitempty" json:"skipped,omitempty" toml:"skipped,omitempty"`
	Phases  []Phase   `yaml:"phases" json:"phases" toml:"phases"`
}

type Skipped struct {
	Path   string `yaml:"path" json:"path" toml:"path"`
	Reason string `yaml:"reason" json:"reason" toml:"reason"`
}

type Phase struct {
	Number     int      `yaml:"number" json:"number" toml:"number"`
	Duplicates int      `yaml:"duplicates" json:"duplicates" toml:"duplicates"`
	Remote     int      `yaml:"remote" json:"remote" toml:"remote"`
	Uploads    []Upload `yaml:"uploads" json:"uploads" toml:"uploads"`
	Files      []File   `yaml:"files" json:"files" toml:"files"`
}

// Upload is one settled upload, keyed by identity.
type Upload struct {
	Identity     string `yaml:"identity" json:"identity" toml:"identity"`
	PublicID     string `yaml:"public_id" json:"public_id" toml:"public_id"`
	ResourceKind string `yaml:"resource_kind" json:"resource_kind" toml:"resource_kind"`
	URL          string `yaml:"url,omitempty" json:"url,omitempty" toml:"url,omitempty"`
	Error        string `yaml:"error,omitempty" json:"error,omitempty" toml:"error,omitempty"`
}

type File struct {
	Source        string      `yaml:"source" json:"source" toml:"source"`
	Dest          string      `yaml:"dest" json:"dest" toml:"dest"`
	Substitutions int         `yaml:"substitutions" json:"substitutions" toml:"substitutions"`
	References    []Reference `yaml:"references,omitempty" json:"references,omitempty" toml:"references,omitempty"`
}

type Reference struct {
	Kind     string `yaml:"kind" json:"kind" toml:"kind"`
	Written  string `yaml:"written" json:"written" toml:"written"`
	Identity string `yaml:"identity" json:"identity" toml:"identity"`
	Status   string `yaml:"status" json:"status" toml:"status"`
	NewText  string `yaml:"new_text,omitempty" json:"new_text,omitempty" toml:"new_text,omitempty"`
	Reason   string `yaml:"reason,omitempty" json:"reason,omitempty" toml:"reason,omitempty"`
}

// FromSummary converts a pipeline summary.
func FromSummary(s *pipeline.Summary) *Report {
	r := &Report{State: s.State.String()}
	for _, sk := range s.Skipped {
		r.Skipped = append(r.Skipped, Skipped{Path: sk.Path, Reason: sk.Reason})
	}
	for _, p := range s.Phases {
		phase := Phase{Number: p.Number, Duplicates: p.Filter.Duplicates, Remote: p.Filter.Remote}

		ids := make([]string, 0, len(p.Results))
		for id := range p.Results {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			res := p.Results[id]
			u := Upload{Identity: id, PublicID: res.PublicID, ResourceKind: res.ResourceKind, URL: res.URL}
			if res.Err != nil {
				u.Error = res.Err.Error()
			}
			phase.Uploads = append(phase.Uploads, u)
		}

		for _, f := range p.Files {
			file := File{Source: f.Source, Dest: f.Dest, Substitutions: f.Substitutions}
			for _, o := range f.Refs {
				file.References = append(file.References, Reference{
					Kind:     o.Ref.Kind.String(),
					Written:  o.Ref.Written,
					Identity: o.Ref.Identity,
					Status:   string(o.Status),
					NewText:  o.NewText,
					Reason:   o.Reason,
				})
			}
			phase.Files = append(phase.Files, file)
		}
		r.Phases = append(r.Phases, phase)
	}
	return r
}

// Marshal picks the encoding from the extension of path: .json, .toml,
// anything else is YAML.
func Marshal(r *Report, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return append(data, '\n'), nil
	case ".toml":
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes r and writes it to path.
func Write(fs safeio.FS, path string, r *Report) error {
	data, err := Marshal(r, path)
	if err != nil {
		return err
	}
	if err := fs.WriteText(path, string(data)); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
