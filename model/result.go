package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"

	"github.com/siherrmann/grimoire/helper"
)

// Method names the generation path that produced an answer
type Method string

const (
	MethodPrimary          Method = "primary"
	MethodSecondaryWithWeb Method = "secondary+web"
)

const (
	// PreviewLength caps the text previews returned for sources and web sources
	PreviewLength = 200
	MinTopK       = 1
	MaxTopK       = 10
)

// RetrievedRecord is a chunk returned by a similarity query
type RetrievedRecord struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	ChunkID    int     `json:"chunk_id"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// WebSnippet is a piece of text fetched from a web page
type WebSnippet struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// SourcePreview is the shortened form of a RetrievedRecord returned to callers
type SourcePreview struct {
	Source      string  `json:"source"`
	ChunkID     int     `json:"chunk_id"`
	TextPreview string  `json:"text_preview"`
	Similarity  float64 `json:"similarity"`
}

// WebSourcePreview is the shortened form of a WebSnippet returned to callers
type WebSourcePreview struct {
	URL     string `json:"url"`
	Preview string `json:"preview"`
}

// QueryResult is the answer to one question.
// WebSources is nil unless the query was escalated.
type QueryResult struct {
	Question     string             `json:"question"`
	Answer       string             `json:"answer"`
	Confidence   float64            `json:"confidence"`
	MethodUsed   Method             `json:"method_used"`
	Sources      []SourcePreview    `json:"sources"`
	WebEnhanced  bool               `json:"web_enhanced"`
	WebSources   []WebSourcePreview `json:"web_sources"`
	ResponseTime float64            `json:"response_time,omitempty"`
	Cached       bool               `json:"cached"`
}

// Value implements the driver.Valuer interface for JSONB storage
func (r QueryResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for JSONB retrieval
func (r *QueryResult) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("query result scan", errors.New("type assertion to []byte failed"))
	}
	return json.Unmarshal(b, r)
}

// Similarity converts a cosine distance in [0,2] into a similarity in [0,1].
// Zero distance maps to 1, maximum distance to 0, and the result is clamped at 0.
func Similarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return math.Max(0, math.Min(1, 1-distance/2))
}

// ClampTopK bounds a requested retrieval width to [MinTopK, MaxTopK]
func ClampTopK(topK int) int {
	if topK < MinTopK {
		return MinTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// NewSourcePreviews converts records into previews, keeping their order
func NewSourcePreviews(records []RetrievedRecord) []SourcePreview {
	previews := make([]SourcePreview, 0, len(records))
	for _, r := range records {
		previews = append(previews, SourcePreview{
			Source:      r.Source,
			ChunkID:     r.ChunkID,
			TextPreview: helper.Truncate(r.Text, PreviewLength),
			Similarity:  r.Similarity,
		})
	}
	return previews
}

// NewWebSourcePreviews converts snippets into previews, keeping their order.
// The result is never nil so escalated results always carry the field.
func NewWebSourcePreviews(snippets []WebSnippet) []WebSourcePreview {
	previews := make([]WebSourcePreview, 0, len(snippets))
	for _, s := range snippets {
		previews = append(previews, WebSourcePreview{
			URL:     s.URL,
			Preview: helper.Truncate(s.Text, PreviewLength),
		})
	}
	return previews
}

// Similarities returns the similarity of each record
func Similarities(records []RetrievedRecord) []float64 {
	sims := make([]float64, len(records))
	for i, r := range records {
		sims[i] = r.Similarity
	}
	return sims
}
