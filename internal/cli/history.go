package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewHistoryCmd(opts *Options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently submitted prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			db, err := rt.Store()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = rt.Config.State.InputHistoryLimit
			}
			entries, err := db.InputHistory(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read input history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No prompts yet.")
				return nil
			}
			for i, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", i+1, entry)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of prompts to show (default: state.input_history_limit)")
	return cmd
}
