// Package main provides the docfetch command: an HTTP service and a one-shot
// runner that export portal documents for a batch of identifiers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entrhq/docfetch/pkg/batch"
	"github.com/entrhq/docfetch/pkg/config"
	"github.com/entrhq/docfetch/pkg/logging"
	"github.com/entrhq/docfetch/pkg/metrics"
	"github.com/entrhq/docfetch/pkg/server"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	verbose    bool

	runIDs   []string
	runInput string
	runJSON  bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docfetch",
	Short: "Export portal documents for batches of identifiers",
	Long: `docfetch logs into the document portal once per batch, queries every
identifier in order, and saves each result page as a PDF on the configured share.

Failed identifiers are reported and do not stop the batch.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		opts := logging.Options{Env: cfg.Logging.Env, Level: cfg.Logging.Level, Dir: cfg.Logging.Dir}
		if verbose {
			opts.Level = "debug"
		}
		logger, err = logging.New(opts)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the batch endpoints over HTTP",
	RunE:  serve,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single batch and print its report",
	Example: `  docfetch run --ids A001,A002
  docfetch run --input request.json
  docfetch run --input identifiers.txt --json`,
	RunE: runOnce,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "docfetch %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	runCmd.Flags().StringSliceVar(&runIDs, "ids", nil, "Comma-separated identifiers")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "File with a JSON request body or one identifier per line (- for stdin)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the report as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting docfetch",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("run_id", logging.RunID()),
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	orch, err := buildOrchestrator(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	srv := server.New(orch, cfg.Server, m, prometheus.DefaultGatherer, logger)
	return srv.ListenAndServe(ctx)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids, err := readIdentifiers(runIDs, runInput, cmd.InOrStdin())
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	report, runErr := orch.Run(ctx, ids)
	if report != nil {
		out, err := formatReport(report, runJSON)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return runErr
}

// exitCode maps a batch error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, batch.ErrInvalidInput):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	case batch.IsFatal(err):
		return 3
	default:
		return 1
	}
}
