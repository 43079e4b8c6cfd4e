package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is one indexed piece of rulebook text.
// ChunkID is unique within Source and follows insertion order.
type Chunk struct {
	DocumentRID uuid.UUID `json:"document_rid"`
	Source      string    `json:"source"`
	ChunkID     int       `json:"chunk_id"`
	TotalChunks int       `json:"total_chunks"`
	CharCount   int       `json:"char_count"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Results
	Distance float64 `json:"distance,omitempty"`
}

// HasEmbedding reports whether the chunk carries a vector of the given dimension
func (c *Chunk) HasEmbedding(dimension int) bool {
	return len(c.Embedding) > 0 && len(c.Embedding) == dimension
}
