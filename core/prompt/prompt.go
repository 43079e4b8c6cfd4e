package prompt

import (
	"fmt"
	"strings"

	"github.com/siherrmann/grimoire/model"
)

// BlockSeparator joins formatted context blocks
const BlockSeparator = "\n\n---\n\n"

// FormatContext renders retrieved records as numbered source blocks, in the given order.
// An empty slice yields an empty string.
func FormatContext(records []model.RetrievedRecord) string {
	blocks := make([]string, 0, len(records))
	for i, record := range records {
		blocks = append(blocks, fmt.Sprintf(
			"[Source %d: %s, Chunk %d, Similarity: %.2f]\n%s",
			i+1,
			record.Source,
			record.ChunkID,
			record.Similarity,
			record.Text,
		))
	}
	return strings.Join(blocks, BlockSeparator)
}

// FormatWebContext renders web snippets as numbered web source blocks, in the given order
func FormatWebContext(snippets []model.WebSnippet) string {
	blocks := make([]string, 0, len(snippets))
	for i, snippet := range snippets {
		blocks = append(blocks, fmt.Sprintf("[Web Source %d: %s]\n%s", i+1, snippet.URL, snippet.Text))
	}
	return strings.Join(blocks, BlockSeparator)
}

// Primary builds the prompt for the local generator
func Primary(question string, context string) string {
	return fmt.Sprintf(`You are a D&D 5th Edition expert. Answer ONLY based on the provided context.

Context:
%s

Question: %s

Answer with source citations (Source X):`, context, question)
}

// Secondary builds the prompt for the remote generator.
// Without web context it falls back to a rulebook-only prompt.
func Secondary(question string, context string, webContext string) string {
	if webContext == "" {
		return fmt.Sprintf(`You are a D&D expert. Answer based on the context.

Context:
%s

Question: %s

Answer with citations.`, context, question)
	}

	return fmt.Sprintf(`You are a D&D expert. Answer using BOTH the PDF context and web search results.

PDF Context:
%s

Web Search Results:
%s

Question: %s

Provide a comprehensive answer citing sources.`, context, webContext, question)
}
