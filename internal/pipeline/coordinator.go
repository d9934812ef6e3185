// Package pipeline coordinates the two-phase extract, filter, upload and
// rewrite run. Phase 1 handles assets referenced from every input file;
// phase 2 handles <link> references against the phase-1 outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/cloudref/pkg/logger"
	"github.com/fulmenhq/cloudref/pkg/refs"
	"github.com/fulmenhq/cloudref/pkg/rewrite"
	"github.com/fulmenhq/cloudref/pkg/safeio"
	"github.com/fulmenhq/cloudref/pkg/store"
	"github.com/fulmenhq/cloudref/pkg/upload"
)

// Mapping pairs one source file with its destination.
type Mapping struct {
	Source string `yaml:"src" json:"src"`
	Dest   string `yaml:"dest" json:"dest"`
}

// Settings configure a run.
type Settings struct {
	Extractors           []refs.Extractor
	Roots                []string
	RemoveVersionSegment bool
	Upload               upload.Policy
}

// SkippedFile is a declared source excluded from processing.
type SkippedFile struct {
	Path   string
	Reason string
}

// PhaseSummary describes one completed (or aborted) phase.
type PhaseSummary struct {
	Number  int
	Files   []rewrite.FileOutcome
	Results upload.Results
	Filter  refs.FilterStats
}

// Summary is the outcome of a run.
type Summary struct {
	State   State
	Skipped []SkippedFile
	Phases  []PhaseSummary
}

// Coordinator owns the phase state for a single run. It is not reusable
// across concurrent runs.
type Coordinator struct {
	fs       safeio.FS
	store    store.Store
	settings Settings

	mu    sync.Mutex
	state State
}

// New builds a Coordinator.
func New(fs safeio.FS, s store.Store, settings Settings) *Coordinator {
	if len(settings.Extractors) == 0 {
		settings.Extractors = refs.DefaultExtractors()
	}
	if len(settings.Upload.Roots) == 0 {
		settings.Upload.Roots = settings.Roots
	}
	return &Coordinator{fs: fs, store: s, settings: settings}
}

// State returns the current step.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) transition(to State) {
	c.mu.Lock()
	from := c.state
	if !CanTransition(from, to) {
		c.mu.Unlock()
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", from, to))
	}
	c.state = to
	c.mu.Unlock()
	logger.Debug("pipeline state", logger.String("from", from.String()), logger.String("to", to.String()))
}

// Run executes both phases over mappings.
func (c *Coordinator) Run(ctx context.Context, mappings []Mapping) (*Summary, error) {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	summary := &Summary{}
	defer func() { summary.State = c.State() }()

	resolver, err := refs.NewResolver(c.settings.Roots, c.fs)
	if err != nil {
		return summary, err
	}
	orch := upload.New(c.store, c.settings.Upload)
	engine := rewrite.New(c.fs, c.settings.RemoveVersionSegment)

	c.transition(StateExtract1)
	phase1, phase2, skipped, err := c.extract(ctx, resolver, mappings)
	summary.Skipped = skipped
	if err != nil {
		return summary, err
	}

	logger.Info("Upload files", logger.Int("phase", 1), logger.Int("files", len(phase1.Files)))
	p1, err := c.runPhase(ctx, phase1, orch, engine, StateFilter1, StateUpload1, StateRewrite1)
	summary.Phases = append(summary.Phases, p1)
	if err != nil {
		return summary, err
	}

	c.transition(StateRemap2)
	Remap(phase1, phase2)

	logger.Info("Upload files", logger.Int("phase", 2), logger.Int("files", len(phase2.Files)))
	p2, err := c.runPhase(ctx, phase2, orch, engine, StateFilter2, StateUpload2, StateRewrite2)
	summary.Phases = append(summary.Phases, p2)
	if err != nil {
		return summary, err
	}

	c.transition(StateDone)
	return summary, nil
}

func (c *Coordinator) runPhase(ctx context.Context, phase *refs.Phase, orch *upload.Orchestrator, engine *rewrite.Engine, filterState, uploadState, rewriteState State) (PhaseSummary, error) {
	out := PhaseSummary{Number: phase.Number}
	list := phase.References()

	c.transition(filterState)
	out.Filter = refs.Filter(list)
	logger.Debug("filtered references",
		logger.Int("phase", phase.Number),
		logger.Int("references", len(list)),
		logger.Int("duplicates", out.Filter.Duplicates),
		logger.Int("remote", out.Filter.Remote))

	c.transition(uploadState)
	results, err := orch.Run(ctx, list)
	out.Results = results
	if err != nil {
		var abort *upload.AbortError
		if errors.As(err, &abort) {
			c.transition(StateAborted)
		}
		return out, fmt.Errorf("phase %d upload: %w", phase.Number, err)
	}

	c.transition(rewriteState)
	logger.Info("Replace references", logger.Int("phase", phase.Number))
	files, err := engine.Apply(phase.Files, results)
	out.Files = files
	if err != nil {
		return out, fmt.Errorf("phase %d rewrite: %w", phase.Number, err)
	}
	return out, nil
}

type extracted struct {
	file  *refs.SourceFile
	links []*refs.Reference
	skip  *SkippedFile
}

// extract reads and scans every declared source. Files are independent, so
// reading, extraction and resolution run in parallel; output keeps the
// declared order.
func (c *Coordinator) extract(ctx context.Context, resolver *refs.Resolver, mappings []Mapping) (*refs.Phase, *refs.Phase, []SkippedFile, error) {
	slots := make([]extracted, len(mappings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, m := range mappings {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = c.extractOne(resolver, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	phase1 := &refs.Phase{Number: 1}
	phase2 := &refs.Phase{Number: 2}
	var skipped []SkippedFile
	for _, s := range slots {
		if s.skip != nil {
			skipped = append(skipped, *s.skip)
			logger.Warn(s.skip.Reason, logger.String("path", s.skip.Path))
			continue
		}
		phase1.Files = append(phase1.Files, s.file)
		if len(s.links) > 0 {
			phase2.Files = append(phase2.Files, &refs.SourceFile{
				SourcePath: s.file.SourcePath,
				ReadPath:   s.file.SourcePath,
				DestPath:   s.file.DestPath,
				Refs:       s.links,
			})
		}
	}
	return phase1, phase2, skipped, nil
}

func (c *Coordinator) extractOne(resolver *refs.Resolver, m Mapping) extracted {
	if !c.fs.Exists(m.Source) {
		return extracted{skip: &SkippedFile{Path: m.Source, Reason: "Source file not found"}}
	}
	ex, err := refs.ExtractorFor(m.Source, c.settings.Extractors...)
	if err != nil {
		return extracted{skip: &SkippedFile{Path: m.Source, Reason: "Unsupported file extension"}}
	}
	content, err := c.fs.ReadText(m.Source)
	if err != nil {
		return extracted{skip: &SkippedFile{Path: m.Source, Reason: "Source file unreadable: " + err.Error()}}
	}

	found := ex.Extract(m.Source, content)
	resolver.ResolveAll(found.Assets)
	resolver.ResolveAll(found.Links)

	return extracted{
		file: &refs.SourceFile{
			SourcePath: m.Source,
			ReadPath:   m.Source,
			DestPath:   m.Dest,
			Refs:       found.Assets,
		},
		links: found.Links,
	}
}

// Remap redirects phase-2 state onto phase-1 outputs: any link identity or
// owning file equal to a phase-1 source path now points at that file's
// destination, so phase 2 uploads and rewrites already-rewritten content.
func Remap(phase1, phase2 *refs.Phase) {
	dest := make(map[string]string, len(phase1.Files))
	for _, f := range phase1.Files {
		dest[absPath(f.SourcePath)] = f.DestPath
	}

	for _, f := range phase2.Files {
		if d, ok := dest[absPath(f.SourcePath)]; ok {
			f.ReadPath = d
		}
		for _, ref := range f.Refs {
			if d, ok := dest[absPath(ref.Owner)]; ok {
				ref.Owner = d
			}
			if ref.Remote {
				continue
			}
			if d, ok := dest[ref.Identity]; ok {
				logger.Debug("remapped link target", logger.String("from", ref.Identity), logger.String("to", d))
				ref.Identity = absPath(d)
				ref.Found = true
			}
		}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
