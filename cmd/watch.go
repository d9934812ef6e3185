/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fulmenhq/cloudref/internal/pipeline"
	"github.com/fulmenhq/cloudref/pkg/config"
	"github.com/fulmenhq/cloudref/pkg/ignore"
	"github.com/fulmenhq/cloudref/pkg/logger"
)

const watchDebounce = 300 * time.Millisecond

type watchSet struct {
	dirs   []string
	ignore map[string]struct{}
	skip   *ignore.Matcher
}

// watchTargets watches each source's directory and every root recursively.
// Destinations and ignored paths do not trigger a run.
func watchTargets(cfg *config.Config, mappings []pipeline.Mapping, baseDir string, skip *ignore.Matcher) watchSet {
	dirs := make(map[string]struct{})
	ignored := make(map[string]struct{})
	for _, m := range mappings {
		dirs[filepath.Dir(m.Source)] = struct{}{}
		ignored[filepath.Clean(m.Dest)] = struct{}{}
	}
	for _, root := range cfg.Roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(baseDir, root)
		}
		_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if p != root && skip.IsIgnoredDir(p) {
				return filepath.SkipDir
			}
			dirs[p] = struct{}{}
			return nil
		})
	}

	ws := watchSet{ignore: ignored, skip: skip}
	for d := range dirs {
		ws.dirs = append(ws.dirs, d)
	}
	sort.Strings(ws.dirs)
	return ws
}

func (w watchSet) ignored(name string) bool {
	clean := filepath.Clean(name)
	if _, ok := w.ignore[clean]; ok {
		return true
	}
	if w.skip.IsIgnored(clean) {
		return true
	}
	// Temp files from atomic writes.
	return strings.HasPrefix(filepath.Base(clean), ".") && strings.Contains(filepath.Base(clean), ".tmp-")
}

// watchAndRerun calls run after each debounced burst of changes until ctx ends.
func watchAndRerun(ctx context.Context, targets watchSet, run func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, d := range targets.dirs {
		if err := watcher.Add(d); err != nil {
			logger.Warn("Cannot watch directory", logger.String("dir", d), logger.Err(err))
			continue
		}
		watched++
	}
	logger.Info("Watching for changes", logger.Int("dirs", watched))

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod || targets.ignored(ev.Name) {
				continue
			}
			logger.Debug("change detected", logger.String("path", ev.Name), logger.String("op", ev.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if err := run(ctx); err != nil {
				logger.Error("Run failed", logger.Err(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error", logger.Err(err))
		}
	}
}
