package main

import (
	"context"
	"fmt"

	"github.com/siherrmann/grimoire/database"
	"github.com/spf13/cobra"
)

var indexOptions database.IndexOptions

var indexCmd = &cobra.Command{
	Use:       "index [hnsw|ivfflat]",
	Short:     "Recreate the vector index with another type",
	Long:      `Drops and recreates the vector index. The next build creates the default hnsw index again.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{database.IndexTypeHNSW, database.IndexTypeIVFFlat},
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := openService()
		if err != nil {
			return err
		}
		defer g.Close()

		if err := g.ChangeIndexType(context.Background(), args[0], indexOptions); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recreated index as %s\n", args[0])
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexOptions.M, "m", 0, "hnsw: max connections per layer")
	indexCmd.Flags().IntVar(&indexOptions.EfConstruction, "ef-construction", 0, "hnsw: candidate list size while building")
	indexCmd.Flags().IntVar(&indexOptions.Lists, "lists", 0, "ivfflat: number of lists")
}
