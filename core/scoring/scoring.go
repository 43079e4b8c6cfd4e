package scoring

import (
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultHedgePhrases mark an answer as uncertain
var DefaultHedgePhrases = []string{
	"i don't know",
	"i don't have",
	"i'm not sure",
	"not sure",
	"unclear",
	"cannot find",
	"not enough information",
	"no information",
	"i cannot answer",
}

// Typographic apostrophes are matched as ASCII ones
var apostrophes = strings.NewReplacer("\u2019", "'", "\u2018", "'", "\u02BC", "'")

// Config holds the weights of the confidence heuristic
type Config struct {
	Baseline     float64
	HedgePhrases []string
	HedgePenalty float64

	ShortLength  int
	ShortPenalty float64
	LongLength   int
	LongBonus    float64

	CitationMarkers []string
	CitationBonus   float64
	NoCitation      float64

	HighSimilarity   float64
	HighBonus        float64
	MediumSimilarity float64
	MediumBonus      float64
	LowPenalty       float64
	NoSourcesPenalty float64
}

// DefaultConfig returns the tuned default weights
func DefaultConfig() Config {
	return Config{
		Baseline:         0.5,
		HedgePhrases:     DefaultHedgePhrases,
		HedgePenalty:     0.6,
		ShortLength:      50,
		ShortPenalty:     0.3,
		LongLength:       100,
		LongBonus:        0.1,
		CitationMarkers:  []string{"source", "chunk"},
		CitationBonus:    0.15,
		NoCitation:       0.25,
		HighSimilarity:   0.7,
		HighBonus:        0.2,
		MediumSimilarity: 0.5,
		MediumBonus:      0.1,
		LowPenalty:       0.4,
		NoSourcesPenalty: 0.5,
	}
}

// Scorer rates how trustworthy a generated answer is
type Scorer struct {
	config Config
}

// NewScorer creates a scorer with the given weights
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config}
}

// Score returns a confidence in [0,1] for answer given the similarities of the records it was
// generated from. It is deterministic and defined for every input.
func (s *Scorer) Score(answer string, similarities []float64) float64 {
	c := s.config
	confidence := c.Baseline
	lower := apostrophes.Replace(strings.ToLower(answer))

	// Penalized once, however many phrases match
	for _, phrase := range c.HedgePhrases {
		if strings.Contains(lower, phrase) {
			confidence -= c.HedgePenalty
			break
		}
	}

	length := utf8.RuneCountInString(answer)
	if length < c.ShortLength {
		confidence -= c.ShortPenalty
	} else if length > c.LongLength {
		confidence += c.LongBonus
	}

	if containsAny(lower, c.CitationMarkers) {
		confidence += c.CitationBonus
	} else {
		confidence -= c.NoCitation
	}

	if len(similarities) == 0 {
		confidence -= c.NoSourcesPenalty
	} else {
		mean := Mean(similarities)
		switch {
		case mean > c.HighSimilarity:
			confidence += c.HighBonus
		case mean > c.MediumSimilarity:
			confidence += c.MediumBonus
		case mean < c.MediumSimilarity:
			confidence -= c.LowPenalty
		}
	}

	return Clamp(confidence)
}

// Boost raises confidence by boost, bounded to [0,1]
func Boost(confidence float64, boost float64) float64 {
	return Clamp(math.Min(confidence+boost, 1.0))
}

// Clamp bounds value to [0,1]. NaN becomes 0.
func Clamp(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return math.Max(0, math.Min(1, value))
}

// Mean returns the arithmetic mean of values, or 0 for none
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
