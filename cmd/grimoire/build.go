package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var buildDir string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Index the rulebook PDFs",
	Long:  `Extracts, chunks and embeds every PDF of the corpus directory and replaces the index.`,
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildDir, "dir", "d", "", "Corpus directory (overrides config)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	g, err := openService()
	if err != nil {
		return err
	}
	defer g.Close()

	report, err := g.BuildIndex(context.Background(), buildDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents into %d chunks in %s\n", report.Documents, report.Chunks, report.Duration.Round(time.Millisecond))
	return nil
}
