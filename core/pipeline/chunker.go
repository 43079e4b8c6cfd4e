package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words, characters
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker creates a chunker that splits text at the coarsest separator that keeps
// pieces within chunkSize runes, and merges neighbouring pieces with chunkOverlap runes of overlap.
func RecursiveChunker(chunkSize int, chunkOverlap int) ChunkFunc {
	return func(text string) ([]string, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if chunkOverlap < 0 || chunkOverlap >= chunkSize {
			return nil, fmt.Errorf("chunk overlap must be within [0,%d), got %d", chunkSize, chunkOverlap)
		}

		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}

		s := &splitter{size: chunkSize, overlap: chunkOverlap}
		return s.split(text, DefaultSeparators), nil
	}
}

type splitter struct {
	size    int
	overlap int
}

func (s *splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, separator)
	}

	var chunks []string
	var fitting []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.size {
			fitting = append(fitting, piece)
			continue
		}

		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting, separator)...)
			fitting = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting, separator)...)
	}

	return chunks
}

// merge joins pieces into chunks of at most size runes, carrying up to overlap runes
// of trailing pieces into the next chunk.
func (s *splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)

	var chunks []string
	var window []string
	total := 0
	for _, piece := range pieces {
		pieceLen := runeLen(piece)
		joinLen := 0
		if len(window) > 0 {
			joinLen = sepLen
		}

		if total+pieceLen+joinLen > s.size && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}

			for total > s.overlap || (total > 0 && total+pieceLen+sepLen > s.size) {
				total -= runeLen(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}

		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, piece)
		total += pieceLen
	}

	if chunk := strings.TrimSpace(strings.Join(window, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
