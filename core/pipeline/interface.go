package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/grimoire/model"
)

// ChunkFunc is a function that splits text into ordered chunk texts
type ChunkFunc func(text string) ([]string, error)

// EmbedFunc is a function that generates one embedding per text, in input order
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Pipeline combines cleaning, chunking and embedding
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder *Embedder
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder *Embedder) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Process cleans and splits text from source into chunks carrying their embeddings.
// Chunk ids start at 0 and follow the order of the text.
func (p *Pipeline) Process(ctx context.Context, text string, source string) ([]*model.Chunk, error) {
	if p.Chunker == nil || p.Embedder == nil {
		return nil, fmt.Errorf("pipeline needs a chunker and an embedder")
	}

	texts, err := p.Chunker(CleanText(text))
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return []*model.Chunk{}, nil
	}

	embeddings, err := p.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]*model.Chunk, 0, len(texts))
	for i, content := range texts {
		charCount := runeLen(content)
		chunks = append(chunks, &model.Chunk{
			Source:      source,
			ChunkID:     i,
			TotalChunks: len(texts),
			CharCount:   charCount,
			Text:        content,
			Embedding:   embeddings[i],
			Metadata: model.Metadata{
				"source":       source,
				"chunk_id":     i,
				"total_chunks": len(texts),
				"char_count":   charCount,
			},
		})
	}

	return chunks, nil
}
