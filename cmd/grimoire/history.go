package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyClear bool
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or clear answered questions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the whole history")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show at most n entries")
}

func runHistory(cmd *cobra.Command, args []string) error {
	g, err := openService()
	if err != nil {
		return err
	}
	defer g.Close()

	out := cmd.OutOrStdout()

	if historyClear {
		deleted, err := g.ClearHistory(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d history entries\n", deleted)
		return nil
	}

	entries, err := g.History(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "History is empty")
		return nil
	}

	for _, entry := range entries {
		fmt.Fprintf(out, "%s  %s\n", entry.CreatedAt.Format("2006-01-02 15:04"), entry.Question)
		fmt.Fprintf(out, "    %s (%.2f)\n", entry.Result.MethodUsed, entry.Result.Confidence)
	}
	return nil
}
