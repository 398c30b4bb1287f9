package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store the recollections listed in the personas file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reset, _ := cmd.Flags().GetBool("reset")

			comps, err := componentsFactory(cmd.Context())
			if err != nil {
				return err
			}
			defer comps.Close()

			return runSeed(cmd.Context(), comps.fixture, comps.store, reset, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Bool("reset", false, "drop each persona's existing recollections first")
	return cmd
}

// runSeed inserts every fixture persona's recollections, one batch per persona.
func runSeed(ctx context.Context, fixture *persona.Fixture, st recollection.Store, reset bool, out io.Writer) error {
	total := 0
	for _, e := range fixture.Personas {
		if reset {
			if _, err := st.DeleteAll(ctx, e.ID); err != nil {
				return fmt.Errorf("reset %s: %w", e.ID, err)
			}
		}
		if len(e.Recollections) == 0 {
			continue
		}
		ids, err := st.InsertBatch(ctx, e.ID, e.Recollections)
		if err != nil {
			return fmt.Errorf("seed %s: %w", e.ID, err)
		}
		total += len(ids)
		fmt.Fprintf(out, "%s: %d recollections\n", e.ID, len(ids))
	}
	fmt.Fprintf(out, "seeded %d recollections for %d personas\n", total, len(fixture.Personas))
	return nil
}
