/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fulmenhq/cloudref/internal/pipeline"
	"github.com/fulmenhq/cloudref/pkg/config"
	"github.com/fulmenhq/cloudref/pkg/exitcode"
	"github.com/fulmenhq/cloudref/pkg/ignore"
	"github.com/fulmenhq/cloudref/pkg/logger"
	"github.com/fulmenhq/cloudref/pkg/report"
	"github.com/fulmenhq/cloudref/pkg/safeio"
	"github.com/fulmenhq/cloudref/pkg/store"
	"github.com/fulmenhq/cloudref/pkg/upload"
)

// newStore builds the remote store; tests replace it.
var newStore = func(creds store.Credentials, cfg config.UploadConfig) store.Store {
	return store.NewCloudinary(creds, cfg.Endpoint, cfg.Timeout)
}

type uploadOptions struct {
	configPath string
	dest       string
	src        []string
	watch      bool
}

func newUploadCommand() *cobra.Command {
	v := config.NewViper()
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload referenced assets and write rewritten copies",
		Long: `Upload scans the declared CSS and HTML sources, uploads every local asset they
reference, and writes each source to its destination with references replaced.
<link> targets are handled in a second phase so they point at the rewritten
stylesheets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpload(cmd, v, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default: cloudref.yaml|json|toml in the working directory)")
	f.StringVar(&opts.dest, "dest", "", "Destination for --src (end with / for a directory)")
	f.StringSliceVar(&opts.src, "src", nil, "Source files or doublestar globs; prefix ! to exclude")
	f.StringSlice("root", nil, "Root directories tried when a reference is not relative to its file")
	f.Bool("remove-version", false, "Drop the /v<digits>/ segment from uploaded URLs")
	f.Int("concurrency", 1, "Maximum uploads in flight")
	f.Int("max-attempts", upload.DefaultMaxAttempts, "Attempts per upload before the run aborts")
	f.Duration("retry-delay", 0, "Pause between upload attempts")
	f.String("account", "cloudinary-account.json", "Store account file (cloudName, apiKey, apiSecret)")
	f.String("report", "", "Write a run report (.json, .toml, otherwise YAML)")
	f.BoolVar(&opts.watch, "watch", false, "Re-run when sources or assets change")

	bindFlags(v, f, map[string]string{
		"root":           config.KeyRoots,
		"remove-version": config.KeyRemoveVersionSegment,
		"concurrency":    config.KeyUploadConcurrency,
		"max-attempts":   config.KeyUploadMaxAttempts,
		"retry-delay":    config.KeyUploadRetryDelay,
		"account":        config.KeyAccountFile,
		"report":         config.KeyReport,
	})
	return cmd
}

func bindFlags(v *viper.Viper, f *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func runUpload(cmd *cobra.Command, v *viper.Viper, opts *uploadOptions) error {
	cfg, err := config.Load(v, opts.configPath)
	if err != nil {
		return &exitcode.ConfigErr{Err: err}
	}
	if opts.dest != "" || len(opts.src) > 0 {
		if opts.dest == "" || len(opts.src) == 0 {
			return &exitcode.ConfigErr{Err: errors.New("--dest and --src must be given together")}
		}
		cfg.Files = []config.FileGroup{{Dest: opts.dest, Src: opts.src}}
	}
	if err := cfg.Validate(); err != nil {
		return &exitcode.ConfigErr{Err: err}
	}

	creds, err := config.LoadAccount(cfg.AccountFile)
	if err != nil {
		return &exitcode.ConfigErr{Err: err}
	}
	st := newStore(creds, cfg.Upload)

	baseDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}

	skip, err := ignore.NewMatcher(baseDir)
	if err != nil {
		logger.Warn("Ignore files unreadable, not filtering sources", logger.Err(err))
		skip = nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := runOnce(ctx, cmd.OutOrStdout(), cfg, st, baseDir, skip)
	if !opts.watch {
		return runErr
	}
	if runErr != nil {
		logger.Error("Run failed, waiting for changes", logger.Err(runErr))
	}

	mappings, err := config.ExpandFiles(cfg.Files, baseDir, skip)
	if err != nil {
		return &exitcode.ConfigErr{Err: err}
	}
	return watchAndRerun(ctx, watchTargets(cfg, mappings, baseDir, skip), func(ctx context.Context) error {
		return runOnce(ctx, cmd.OutOrStdout(), cfg, st, baseDir, skip)
	})
}

// runOnce expands the declared files and executes both phases.
func runOnce(ctx context.Context, out io.Writer, cfg *config.Config, st store.Store, baseDir string, skip *ignore.Matcher) error {
	mappings, err := config.ExpandFiles(cfg.Files, baseDir, skip)
	if err != nil {
		return &exitcode.ConfigErr{Err: err}
	}

	coord := pipeline.New(safeio.OS{}, st, pipeline.Settings{
		Roots:                cfg.Roots,
		RemoveVersionSegment: cfg.RemoveVersionSegment,
		Upload: upload.Policy{
			ImageExtensions: cfg.ImageExtensions,
			Roots:           cfg.Roots,
			BaseDir:         baseDir,
			MaxAttempts:     cfg.Upload.MaxAttempts,
			RetryDelay:      cfg.Upload.RetryDelay,
			Concurrency:     cfg.Upload.Concurrency,
		},
	})

	summary, err := coord.Run(ctx, mappings)
	if cfg.Report != "" && summary != nil {
		path := cfg.Report
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if werr := report.Write(safeio.OS{}, path, report.FromSummary(summary)); werr != nil {
			logger.Warn("Failed to write report", logger.Err(werr))
		} else {
			logger.Info("Wrote report", logger.String("path", path))
		}
	}
	if summary != nil {
		printSummary(out, summary)
	}
	if err != nil {
		return err
	}

	logger.Info("Done",
		logger.Int("files", len(mappings)-len(summary.Skipped)),
		logger.Int("skipped", len(summary.Skipped)))
	return nil
}
