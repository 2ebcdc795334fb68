package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Trigger the process-and-deploy workflow and show recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ref, _ := cmd.Flags().GetString("ref")
		limit, _ := cmd.Flags().GetInt("runs")

		gh, err := newTracker()
		if err != nil {
			return err
		}
		if err := gh.DispatchWorkflow(ctx, cfg.DeployWorkflow, ref); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dispatched %s on %s@%s\n", cfg.DeployWorkflow, gh.Repo(), ref)

		runs, err := gh.ListRuns(ctx, cfg.DeployWorkflow, limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tSTATUS\tCONCLUSION\tEVENT\tURL")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.Conclusion, r.Event, r.HTMLURL)
		}
		return tw.Flush()
	},
}

func init() {
	deployCmd.Flags().String("ref", "main", "git ref to run the workflow on")
	deployCmd.Flags().Int("runs", 5, "number of recent runs to list")
	rootCmd.AddCommand(deployCmd)
}
