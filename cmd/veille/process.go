package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/veille/internal/analyze"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process every pending capture issue and rebuild the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gh, err := newTracker()
		if err != nil {
			return err
		}
		a, err := analyze.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		orch := newOrchestrator(gh, a)
		sum, err := orch.RunBatch(ctx)
		if err != nil {
			return fmt.Errorf("process %s: %w", gh.Repo(), err)
		}

		logger.Info("batch complete",
			"pending", sum.Pending,
			"published", sum.Published,
			"failed", sum.Failed,
			"by_stage", sum.ByStage,
			"index_entries", sum.Index.Entries,
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%d pending, %d published, %d failed\n", sum.Pending, sum.Published, sum.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
