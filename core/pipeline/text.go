package pipeline

import (
	"regexp"
	"strings"
)

var (
	unsupportedChars = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?:;\-()\[\]'"]`)
	horizontalSpace  = regexp.MustCompile(`[^\S\n]+`)
	spaceAroundBreak = regexp.MustCompile(` ?\n ?`)
	paragraphBreak   = regexp.MustCompile(`\n{2,}`)

	typographicQuotes = strings.NewReplacer("\u2018", "'", "\u2019", "'", "\u201C", `"`, "\u201D", `"`)
)

// CleanText normalizes extracted PDF text before chunking.
// Curly quotes become ASCII quotes. Symbols outside letters, digits and common punctuation
// are dropped, runs of spaces and tabs collapse, and blank line runs become one paragraph break.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = typographicQuotes.Replace(text)
	text = unsupportedChars.ReplaceAllString(text, "")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAroundBreak.ReplaceAllString(text, "\n")
	text = paragraphBreak.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
