package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/debtlink/internal/batch"
	"github.com/sells-group/debtlink/internal/export"
	"github.com/sells-group/debtlink/internal/report"
)

type batchOptions struct {
	CompanyIDs  []int64
	Persist     bool
	RetryFailed bool
	XLSX        string
}

var batchOpts batchOptions

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Match many companies concurrently",
	Long:  "Matches the given companies (every stored company by default). Companies that keep failing are written to the dead-letter queue; --retry-failed replays the entries that are due.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runBatch(ctx, cmd.OutOrStdout(), batchOpts)
	},
}

func init() {
	batchCmd.Flags().Int64SliceVar(&batchOpts.CompanyIDs, "company", nil, "company IDs to match (default: all)")
	batchCmd.Flags().BoolVar(&batchOpts.Persist, "persist", false, "write links at or above match.min_persist_confidence")
	batchCmd.Flags().BoolVar(&batchOpts.RetryFailed, "retry-failed", false, "replay due dead-letter entries instead of --company")
	batchCmd.Flags().StringVar(&batchOpts.XLSX, "xlsx", "", "write all successful reports to this workbook")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(ctx context.Context, w io.Writer, opts batchOptions) error {
	e, err := initEnv(ctx, "")
	if err != nil {
		return err
	}
	defer e.Close()

	var p *report.Persister
	if opts.Persist {
		p = e.Persister
	}
	runner := batch.NewRunner(e.Store, e.Builder, p, cfg.Batch)

	var sum *batch.Summary
	if opts.RetryFailed {
		sum, err = runner.RetryFailed(ctx)
	} else {
		sum, err = runner.Run(ctx, opts.CompanyIDs)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatSummary(sum))

	if opts.XLSX != "" {
		if err := export.WriteXLSX(opts.XLSX, sum.Reports()); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", opts.XLSX)
	}
	return nil
}
