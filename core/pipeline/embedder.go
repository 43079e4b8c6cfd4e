package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/grimoire/helper"
)

// DefaultEmbeddingModel produces 768-dimensional sentence embeddings
const DefaultEmbeddingModel = "sentence-transformers/all-mpnet-base-v2"

// DefaultOnnxFile selects the unquantized export of the model repository
const DefaultOnnxFile = "onnx/model.onnx"

// Embedder turns text into fixed-dimension vectors, one at a time or in batches.
type Embedder struct {
	embed     EmbedFunc
	dimension int
	batchSize int
	close     func() error
}

// NewEmbedder wraps a batch embedding function.
// Every vector it returns is checked against dimension.
func NewEmbedder(embed EmbedFunc, dimension int, batchSize int) (*Embedder, error) {
	if embed == nil {
		return nil, helper.NewError("embedder validation", fmt.Errorf("embed function is nil"))
	}
	if dimension <= 0 {
		return nil, helper.NewError("embedder validation", fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	if batchSize <= 0 {
		batchSize = 32
	}

	return &Embedder{
		embed:     embed,
		dimension: dimension,
		batchSize: batchSize,
	}, nil
}

// DefaultEmbedder creates an embedder using a real sentence transformer model.
// The model is downloaded into modelDir on first use.
func DefaultEmbedder(modelDir string, modelName string, dimension int, batchSize int) (*Embedder, error) {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}

	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModelIn(modelDir, modelName, DefaultOnnxFile)
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	// The pipeline is not safe for concurrent runs
	var mu sync.Mutex
	embedder, err := NewEmbedder(func(ctx context.Context, texts []string) ([][]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mu.Lock()
		defer mu.Unlock()

		result, err := sentencePipeline.RunPipeline(texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		return result.Embeddings, nil
	}, dimension, batchSize)
	if err != nil {
		session.Destroy()
		return nil, err
	}
	embedder.close = session.Destroy

	return embedder, nil
}

// Dimension returns the length of every vector the embedder produces
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed returns the vector for a single text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedMany returns one vector per text, in input order, running at most batchSize texts at once
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		batch, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, helper.NewError("embed", err)
		}
		if len(batch) != end-start {
			return nil, helper.NewError("embed", fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(batch), end-start))
		}

		for _, embedding := range batch {
			if len(embedding) != e.dimension {
				return nil, helper.NewError("embed", fmt.Errorf("embedding has dimension %d, expected %d", len(embedding), e.dimension))
			}
		}
		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}

// Close releases the model session, if any
func (e *Embedder) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}
