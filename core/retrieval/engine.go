package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
)

// Embedder turns a question into a query vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex finds the chunks nearest to a query vector.
// Implemented by database.ChunksDBHandler.
type VectorIndex interface {
	SelectChunksByDistance(ctx context.Context, embedding []float32, limit int) ([]*model.Chunk, error)
	CountChunks(ctx context.Context) (int, error)
}

// Engine provides similarity retrieval over the vector index
type Engine struct {
	embedder Embedder
	index    VectorIndex
}

// NewEngine creates a new retrieval engine
func NewEngine(embedder Embedder, index VectorIndex) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve embeds the question and returns its topK nearest records
func (e *Engine) Retrieve(ctx context.Context, question string, topK int) ([]model.RetrievedRecord, error) {
	embedding, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, helper.NewError("embed question", err)
	}

	return e.VectorRetrieve(ctx, embedding, topK)
}

// VectorRetrieve returns the topK records nearest to embedding, closest first.
// Records at equal distance keep the order the index returned them in.
func (e *Engine) VectorRetrieve(ctx context.Context, embedding []float32, topK int) ([]model.RetrievedRecord, error) {
	if topK <= 0 {
		return nil, helper.NewError("vector retrieve", fmt.Errorf("top_k must be positive, got %d", topK))
	}

	chunks, err := e.index.SelectChunksByDistance(ctx, embedding, topK)
	if err != nil {
		return nil, helper.NewError("select chunks", err)
	}

	return sortResults(chunks, topK), nil
}

// Count returns the number of indexed chunks
func (e *Engine) Count(ctx context.Context) (int, error) {
	count, err := e.index.CountChunks(ctx)
	if err != nil {
		return 0, helper.NewError("count chunks", err)
	}
	return count, nil
}

// sortResults converts chunks to records sorted by ascending distance and limited to topK
func sortResults(chunks []*model.Chunk, topK int) []model.RetrievedRecord {
	records := make([]model.RetrievedRecord, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == nil {
			continue
		}
		records = append(records, model.RetrievedRecord{
			Text:       chunk.Text,
			Source:     chunk.Source,
			ChunkID:    chunk.ChunkID,
			Distance:   chunk.Distance,
			Similarity: model.Similarity(chunk.Distance),
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Distance < records[j].Distance
	})

	if len(records) > topK {
		records = records[:topK]
	}

	return records
}
