// Package cli implements the bulkcat command tree.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tlind/bulkcat/internal/config"
	"github.com/tlind/bulkcat/pkg/logging"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailures    = 1
	exitInterrupted = 130
)

var (
	// errInterrupted maps a cancelled run to exit code 130.
	errInterrupted = errors.New("run interrupted")

	// errRunFailures maps a completed run with failures to exit code 1.
	errRunFailures = errors.New("run completed with failures")
)

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	return exitCode(NewRootCmd(version).Execute())
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInterrupted):
		return exitInterrupted
	case errors.Is(err, errRunFailures):
		return exitFailures
	default:
		return 1
	}
}

// NewRootCmd creates the root Cobra command for the bulkcat CLI.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bulkcat",
		Short:   "Bulk operations against a rate-limited catalog API",
		Long: "bulkcat runs large batches of catalog write operations under a shared\n" +
			"rate ceiling, with bounded concurrency, adaptive throttling and per-item\n" +
			"retry. Results are persisted locally for later inspection.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Example: `  # Apply a batch of inventory updates at 25 requests per second
  bulkcat run --input updates.jsonl --workers 8 --rps 25

  # Rehearse the same batch without touching the network
  bulkcat run --input updates.jsonl --dry-run

  # Inspect past runs
  bulkcat runs list
  bulkcat runs show 3`,
	}

	cmd.PersistentFlags().String("config", "", "config file (default bulkcat.yaml in . or $HOME/.config/bulkcat)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().Bool("pretty", false, "human-readable console log output")

	cmd.AddCommand(newRunCmd(), newRunsCmd(), newFetchCmd())

	return cmd
}

// loadConfig resolves configuration for a command and configures logging.
// Logs go to the command's stderr so stdout stays parseable.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := logging.LogLevel(cfg.Logging.Level)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = logging.LevelDebug
	}
	pretty, _ := cmd.Flags().GetBool("pretty")

	logging.Setup(logging.Config{
		Level:  level,
		Pretty: pretty || cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	return cfg, nil
}
