package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the fiche index from the files on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newIndexBuilder().Rebuild()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries (%d scanned, %d corrupt, %d duplicates)\n",
			st.Path, st.Entries, st.Scanned, st.Corrupt, st.Duplicates)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
