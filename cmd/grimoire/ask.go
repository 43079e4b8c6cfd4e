package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/siherrmann/grimoire/model"
	"github.com/spf13/cobra"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "Number of chunks to retrieve (1-10, default from config)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	g, err := openService()
	if err != nil {
		return err
	}
	defer g.Close()

	topK := askTopK
	if topK == 0 {
		topK = g.Config().RAG.TopK
	}

	result, err := g.Answer(context.Background(), strings.Join(args, " "), topK)
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)
	return nil
}

func printResult(w io.Writer, result *model.QueryResult) {
	fmt.Fprintln(w, result.Answer)
	fmt.Fprintln(w)

	method := color.GreenString(string(result.MethodUsed))
	if result.MethodUsed == model.MethodSecondaryWithWeb {
		method = color.YellowString(string(result.MethodUsed))
	}
	fmt.Fprintf(w, "Method: %s  Confidence: %.2f  Time: %.2fs", method, result.Confidence, result.ResponseTime)
	if result.Cached {
		fmt.Fprint(w, "  (cached)")
	}
	fmt.Fprintln(w)

	for i, source := range result.Sources {
		fmt.Fprintf(w, "  [%d] %s, chunk %d (similarity %.2f)\n", i+1, source.Source, source.ChunkID, source.Similarity)
	}
	for i, source := range result.WebSources {
		fmt.Fprintf(w, "  [web %d] %s\n", i+1, source.URL)
	}
}
