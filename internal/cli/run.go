package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tlind/bulkcat/internal/config"
	"github.com/tlind/bulkcat/internal/runstore"
	"github.com/tlind/bulkcat/pkg/client"
	"github.com/tlind/bulkcat/pkg/engine"
	"github.com/tlind/bulkcat/pkg/ratelimit"
)

func newRunCmd() *cobra.Command {
	var (
		input    string
		workers  int
		rps      float64
		burst    float64
		timeout  time.Duration
		retries  int
		dryRun   bool
		notFound string
		noStore  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch of catalog write operations",
		Long: "Reads one JSON work item per line from --input, runs them through the\n" +
			"worker pool under the shared rate ceiling, prints the report to stdout\n" +
			"and persists it to the run store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, workers, rps, burst, timeout, retries, notFound)

			policy, err := engine.ParseNotFoundPolicy(cfg.Engine.NotFound)
			if err != nil {
				return err
			}

			file, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			items, err := readItems(file)
			file.Close()
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("input %s contains no work items", input)
			}

			eng, err := buildEngine(cfg, policy, dryRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, runErr := eng.Run(ctx, items)

			if err := printReport(cmd, report); err != nil {
				return err
			}
			if !noStore {
				if err := saveRun(cfg, input, report); err != nil {
					// History is best effort; the run itself finished.
					cmd.PrintErrf("Warning: could not persist run: %v\n", err)
				}
			}

			if runErr != nil {
				return fmt.Errorf("%w: %v", errInterrupted, runErr)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%w: %d of %d items failed", errRunFailures, report.Failed, report.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL file with one work item per line (required)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of concurrent workers")
	cmd.Flags().Float64Var(&rps, "rps", 0, "shared rate ceiling in requests per second")
	cmd.Flags().Float64Var(&burst, "burst", 0, "bucket capacity (default: same as --rps)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request timeout")
	cmd.Flags().IntVar(&retries, "retries", 0, "max attempts per item, including the first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "rehearse the batch without network calls")
	cmd.Flags().StringVar(&notFound, "not-found", "", "how to record 404 responses: success, failure or skip")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the report to the run store")
	cmd.MarkFlagRequired("input")

	return cmd
}

// applyRunFlags overlays explicitly-set flags onto the loaded config, so
// precedence is flag > env > file > default.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, workers int, rps, burst float64, timeout time.Duration, retries int, notFound string) {
	if cmd.Flags().Changed("workers") {
		cfg.Engine.Workers = workers
	}
	if cmd.Flags().Changed("rps") {
		cfg.Engine.Rate = rps
	}
	if cmd.Flags().Changed("burst") {
		cfg.Engine.Burst = burst
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Catalog.Timeout = timeout
	}
	if cmd.Flags().Changed("retries") {
		cfg.Engine.MaxAttempts = retries
	}
	if cmd.Flags().Changed("not-found") {
		cfg.Engine.NotFound = notFound
	}
}

// buildEngine assembles bucket, client handles and engine from config. A
// dry run skips the client pool entirely.
func buildEngine(cfg *config.Config, policy engine.NotFoundPolicy, dryRun bool) (*engine.Engine, error) {
	engCfg := engine.Config{
		Workers:     cfg.Engine.Workers,
		BaseRate:    cfg.Engine.Rate,
		Burst:       cfg.Engine.Burst,
		MaxAttempts: cfg.Engine.MaxAttempts,
		DryRun:      dryRun,
		NotFound:    policy,
	}

	if dryRun {
		return engine.New(engCfg, nil, nil, engine.DryRunExecutor())
	}

	if cfg.Catalog.BaseURL == "" {
		return nil, fmt.Errorf("catalog.base_url is required (set it in bulkcat.yaml or BULKCAT_CATALOG_BASE_URL)")
	}

	capacity := cfg.Engine.Burst
	if capacity <= 0 {
		capacity = cfg.Engine.Rate
	}
	bucket := ratelimit.NewBucket(cfg.Engine.Rate, capacity)

	headers := map[string]string{}
	if cfg.Catalog.AuthToken != "" {
		headers["Authorization"] = "Bearer " + cfg.Catalog.AuthToken
	}

	handles, err := client.NewPool(client.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Headers: headers,
		Timeout: cfg.Catalog.Timeout,
		Bucket:  bucket,
	}, cfg.Engine.Workers)
	if err != nil {
		return nil, err
	}

	return engine.New(engCfg, handles, bucket, engine.HTTPExecutor())
}

// printReport writes the report as indented JSON to stdout.
func printReport(cmd *cobra.Command, report *engine.Report) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// saveRun appends the report to the run history store.
func saveRun(cfg *config.Config, input string, report *engine.Report) error {
	store, err := runstore.Open(cfg.Runstore.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Save(runstore.Run{
		Started: time.Now().Add(-report.Elapsed),
		Input:   input,
		Workers: cfg.Engine.Workers,
		Rate:    cfg.Engine.Rate,
		Report:  *report,
	})
	return err
}
