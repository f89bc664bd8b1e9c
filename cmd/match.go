package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/debtlink/internal/export"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/report"
)

type matchOptions struct {
	CompanyID int64
	Mode      string
	Persist   bool
	XLSX      string
	JSON      bool
}

var matchOpts matchOptions

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match one company's instruments to governing documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runMatch(ctx, cmd.OutOrStdout(), matchOpts)
	},
}

func init() {
	matchCmd.Flags().Int64Var(&matchOpts.CompanyID, "company", 0, "company ID (required)")
	matchCmd.Flags().StringVar(&matchOpts.Mode, "mode", "", "selection mode: best or all (default from match.mode)")
	matchCmd.Flags().BoolVar(&matchOpts.Persist, "persist", false, "write links at or above match.min_persist_confidence")
	matchCmd.Flags().StringVar(&matchOpts.XLSX, "xlsx", "", "also write the report to this workbook")
	matchCmd.Flags().BoolVar(&matchOpts.JSON, "json", false, "print the report as JSON")
	_ = matchCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(ctx context.Context, w io.Writer, opts matchOptions) error {
	e, err := initEnv(ctx, opts.Mode)
	if err != nil {
		return err
	}
	defer e.Close()

	rep, err := e.Builder.Build(ctx, opts.CompanyID)
	if err != nil {
		return eris.Wrapf(err, "match company %d", opts.CompanyID)
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return eris.Wrap(err, "encode report")
		}
	} else {
		fmt.Fprintln(w, formatReport(rep))
	}

	if opts.Persist {
		st, err := e.Persister.Persist(ctx, report.Persistable(rep), uuid.NewString())
		if err != nil {
			return eris.Wrap(err, "persist links")
		}
		fmt.Fprintf(w, "links: %d created, %d already stored, %d below threshold\n",
			st.Created, st.Existing, st.BelowThreshold)
	}

	if opts.XLSX != "" {
		if err := export.WriteXLSX(opts.XLSX, []*model.CompanyMatchReport{rep}); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", opts.XLSX)
	}
	return nil
}
