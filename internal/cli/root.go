// Package cli implements the cnvkit-workflow command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/cnvkit/internal/config"
	"github.com/me/cnvkit/internal/logging"
)

var (
	flagDB        string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultDB returns the run database path, checking CNVKIT_WORKFLOW_DB first.
func defaultDB() string {
	if p := os.Getenv("CNVKIT_WORKFLOW_DB"); p != "" {
		return p
	}
	return config.DefaultRunnerConfig().DBPath
}

// NewRootCmd creates the root cobra command for the cnvkit-workflow CLI.
func NewRootCmd() *cobra.Command {
	defaults := config.DefaultRunnerConfig()

	root := &cobra.Command{
		Use:   "cnvkit-workflow",
		Short: "Copy-number analysis of a tumor sample with CNVkit",
		Long: `cnvkit-workflow resolves a sample's properties into a chain of CNVkit
stages (batch, scatter, segmetrics, call, diagram, export seg), runs them,
bundles the working directory into model-fit.tar.gz and provisions the
segment table and the bundle.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			if err := logging.ValidateFormat(flagLogFormat); err != nil {
				return err
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagDB, "db", defaultDB(), "Run database path (or CNVKIT_WORKFLOW_DB env)")
	root.PersistentFlags().StringVar(&flagServer, "server", os.Getenv("CNVKIT_WORKFLOW_SERVER"), "Read runs from a status server instead of the database (or CNVKIT_WORKFLOW_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", defaults.LogFormat, "Log format (text, json)")

	root.AddCommand(
		newPlanCmd(),
		newRunCmd(),
		newCollectCmd(),
		newStatusCmd(),
		newListCmd(),
		newLogsCmd(),
		newServeCmd(),
	)

	return root
}
