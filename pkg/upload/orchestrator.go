// Package upload drives the remote store for one phase: it derives the
// store-side identifier and resource kind of every eligible reference,
// uploads with bounded retry, and keys the settled results by identity.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/cloudref/pkg/logger"
	"github.com/fulmenhq/cloudref/pkg/refs"
	"github.com/fulmenhq/cloudref/pkg/store"
)

// DefaultMaxAttempts is one initial try plus three retries.
const DefaultMaxAttempts = 4

// DefaultImageExtensions classify uploads as images.
var DefaultImageExtensions = []string{"png", "jpg", "jpeg", "gif"}

// Policy configures an Orchestrator.
type Policy struct {
	ImageExtensions []string
	// Roots are stripped from identities when computing public ids; the
	// first root containing the identity wins.
	Roots []string
	// BaseDir is stripped when no root matches. Empty means the working directory.
	BaseDir     string
	MaxAttempts int
	RetryDelay  time.Duration
	Concurrency int
}

// Results maps an absolute identity to its settled upload.
type Results map[string]refs.UploadResult

// AbortError is returned when an upload exhausts its attempts. It halts the run.
type AbortError struct {
	Identity string
	Attempts int
	Err      error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("upload of %s failed after %d attempts: %v", e.Identity, e.Attempts, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Orchestrator uploads the eligible references of a phase.
type Orchestrator struct {
	store  store.Store
	policy Policy
	images map[string]struct{}
}

// New applies policy defaults.
func New(s store.Store, policy Policy) *Orchestrator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.Concurrency <= 0 {
		policy.Concurrency = 1
	}
	if len(policy.ImageExtensions) == 0 {
		policy.ImageExtensions = DefaultImageExtensions
	}
	if policy.BaseDir == "" {
		if wd, err := filepath.Abs("."); err == nil {
			policy.BaseDir = wd
		}
	}
	roots := make([]string, 0, len(policy.Roots))
	for _, r := range policy.Roots {
		if abs, err := filepath.Abs(r); err == nil {
			roots = append(roots, abs)
		}
	}
	policy.Roots = roots

	images := make(map[string]struct{}, len(policy.ImageExtensions))
	for _, ext := range policy.ImageExtensions {
		images[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Orchestrator{store: s, policy: policy, images: images}
}

// PublicID strips the root prefix and the extension from identity.
func (o *Orchestrator) PublicID(identity string) string {
	p := identity
	stripped := false
	for _, root := range o.policy.Roots {
		if rel, ok := within(root, identity); ok {
			p, stripped = rel, true
			break
		}
	}
	if !stripped && o.policy.BaseDir != "" {
		if rel, ok := within(o.policy.BaseDir, identity); ok {
			p = rel
		}
	}
	p = strings.TrimPrefix(filepath.ToSlash(strings.TrimPrefix(p, filepath.VolumeName(p))), "/")
	return strings.TrimSuffix(p, path.Ext(p))
}

// ResourceKind classifies identity by extension.
func (o *Orchestrator) ResourceKind(identity string) store.ResourceKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(identity), "."))
	if _, ok := o.images[ext]; ok {
		return store.KindImage
	}
	return store.KindRaw
}

func within(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// Run uploads every eligible reference in list and attaches results to all
// references sharing an identity. It returns only after every issued upload
// has settled; an *AbortError cancels the rest.
func (o *Orchestrator) Run(ctx context.Context, list []*refs.Reference) (Results, error) {
	results := make(Results)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.policy.Concurrency)

	for _, ref := range list {
		if !ref.Eligible {
			continue
		}
		ref := ref
		g.Go(func() error {
			res, err := o.uploadOne(gctx, ref)
			if err != nil {
				return err
			}
			mu.Lock()
			results[ref.Identity] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	Attach(list, results)
	return results, nil
}

// Attach copies results onto references by identity, never by position.
func Attach(list []*refs.Reference, results Results) {
	for _, ref := range list {
		if ref.Remote {
			continue
		}
		if res, ok := results[ref.Identity]; ok {
			r := res
			ref.Result = &r
		}
	}
}

func (o *Orchestrator) uploadOne(ctx context.Context, ref *refs.Reference) (refs.UploadResult, error) {
	out := refs.UploadResult{
		PublicID:     o.PublicID(ref.Identity),
		ResourceKind: string(o.ResourceKind(ref.Identity)),
	}

	if !ref.Found {
		out.Err = fmt.Errorf("%w: %s", store.ErrResourceNotFound, ref.Identity)
		logger.Warn("resource not found, skipping upload", logger.String("path", ref.Identity), logger.String("ref", ref.Written))
		return out, nil
	}

	opts := store.Options{PublicID: out.PublicID, Overwrite: true, ResourceKind: store.ResourceKind(out.ResourceKind)}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		logger.Info("uploading "+ref.Identity, logger.Int("attempt", attempt), logger.String("kind", out.ResourceKind))

		started := time.Now()
		res, err := o.store.Upload(ctx, ref.Identity, opts)
		if err == nil {
			out.URL = res.URL
			logger.Info("uploaded "+res.URL, logger.Duration("took", time.Since(started)))
			return out, nil
		}

		if IsNotFound(err) {
			out.Err = fmt.Errorf("%w: %v", store.ErrResourceNotFound, err)
			logger.Warn("upload skipped", logger.String("path", ref.Identity), logger.Err(err))
			return out, nil
		}
		if attempt >= o.policy.MaxAttempts {
			logger.Error("upload failed, aborting run", logger.String("path", ref.Identity), logger.Int("attempts", attempt), logger.Err(err))
			return out, &AbortError{Identity: ref.Identity, Attempts: attempt, Err: err}
		}
		logger.Warn("upload failed, retrying", logger.String("path", ref.Identity), logger.Int("attempt", attempt), logger.Err(err))

		if o.policy.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(o.policy.RetryDelay):
			}
		}
	}
}

// IsNotFound reports whether err means the local resource does not exist.
// Such errors are never retried.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrResourceNotFound) || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such file") || strings.Contains(msg, "enoent")
}
