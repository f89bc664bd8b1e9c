package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

type reverseOptions struct {
	CompanyID int64
	Persist   bool
}

var reverseOpts reverseOptions

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Find instruments for a company's unlinked governing documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runReverse(ctx, cmd.OutOrStdout(), reverseOpts)
	},
}

func init() {
	reverseCmd.Flags().Int64Var(&reverseOpts.CompanyID, "company", 0, "company ID (required)")
	reverseCmd.Flags().BoolVar(&reverseOpts.Persist, "persist", false, "write links at or above match.min_persist_confidence")
	_ = reverseCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(reverseCmd)
}

func runReverse(ctx context.Context, w io.Writer, opts reverseOptions) error {
	e, err := initEnv(ctx, "")
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.Builder.BuildReverse(ctx, opts.CompanyID)
	if err != nil {
		return eris.Wrapf(err, "reverse match company %d", opts.CompanyID)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "no candidates for unlinked documents")
		return nil
	}
	fmt.Fprintln(w, formatResults(results))

	if opts.Persist {
		st, err := e.Persister.Persist(ctx, results, uuid.NewString())
		if err != nil {
			return eris.Wrap(err, "persist links")
		}
		fmt.Fprintf(w, "links: %d created, %d already stored, %d below threshold\n",
			st.Created, st.Existing, st.BelowThreshold)
	}
	return nil
}
