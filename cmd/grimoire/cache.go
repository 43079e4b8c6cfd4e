package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the answer cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached answer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := openService()
		if err != nil {
			return err
		}
		defer g.Close()

		deleted, err := g.ClearCache(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached answers\n", deleted)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
