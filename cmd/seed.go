package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/debtlink/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load a YAML dataset of companies, instruments and documents into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context, w io.Writer, path string) error {
	ds, err := store.LoadDataset(path)
	if err != nil {
		return err
	}

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "open store")
	}
	defer s.Close() //nolint:errcheck

	seeder, ok := s.(store.Seeder)
	if !ok || cfg.Store.Driver == "fixture" {
		return eris.Errorf("store driver %q cannot be seeded", cfg.Store.Driver)
	}
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	st, err := seeder.Seed(ctx, ds)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "seeded %d companies, %d instruments, %d documents, %d links\n",
		st.Companies, st.Instruments, st.Documents, st.Links)
	return nil
}
