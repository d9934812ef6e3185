/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/cloudref/pkg/buildinfo"
	"github.com/fulmenhq/cloudref/pkg/exitcode"
	"github.com/fulmenhq/cloudref/pkg/logger"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloudref",
		Short: "Upload referenced assets to a content store and rewrite references",
		Long: `cloudref finds the images, scripts, fonts and stylesheets referenced from CSS and
HTML files, uploads each to a remote content store, and writes copies of the
files with every local reference replaced by the uploaded URL.

Examples:
   cloudref upload --config cloudref.yaml
   cloudref upload --dest tmp/a.css --src test/fixtures/a.css --root test/fixtures
   cloudref version`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("cloudref {{.Version}}\n")

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newUploadCommand())
	cmd.AddCommand(newVersionCommand())
}

var rootCmd = newRootCommand()

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := exitcode.FromError(err)
		logger.Error("Command execution failed", logger.Err(err), logger.String("exit", exitcode.String(code)))
		os.Exit(code)
	}
}

func init() {
	registerSubcommands(rootCmd)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) error {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "cloudref",
		Output:    cmd.ErrOrStderr(),
	}

	if err := logger.Initialize(config); err != nil {
		return &exitcode.ConfigErr{Err: fmt.Errorf("initialize logger: %w", err)}
	}
	return nil
}
