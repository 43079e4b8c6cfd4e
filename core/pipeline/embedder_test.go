package pipeline

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

func TestNewEmbedder(t *testing.T) {
	t.Run("Valid call NewEmbedder", func(t *testing.T) {
		embedder, err := NewEmbedder(mockEmbedFunc, 4, 8)
		require.NoError(t, err, "Expected NewEmbedder to not return an error")
		assert.Equal(t, 4, embedder.Dimension(), "Expected the configured dimension")
		assert.NoError(t, embedder.Close(), "Expected Close without a session to not return an error")
	})

	t.Run("Invalid call NewEmbedder with nil function", func(t *testing.T) {
		_, err := NewEmbedder(nil, 4, 8)
		assert.Error(t, err, "Expected error for nil embed function")
	})

	t.Run("Invalid call NewEmbedder with zero dimension", func(t *testing.T) {
		_, err := NewEmbedder(mockEmbedFunc, 0, 8)
		assert.Error(t, err, "Expected error for zero dimension")
	})
}

func TestEmbedderEmbedMany(t *testing.T) {
	ctx := context.Background()

	t.Run("Texts are embedded in batches and keep their order", func(t *testing.T) {
		var batches []int
		embed := func(ctx context.Context, texts []string) ([][]float32, error) {
			batches = append(batches, len(texts))
			return mockEmbedFunc(ctx, texts)
		}
		embedder := mustEmbedder(t, embed, 4, 2)

		embeddings, err := embedder.EmbedMany(ctx, []string{"a", "bb", "ccc", "dddd", "eeeee"})

		require.NoError(t, err, "Expected EmbedMany to not return an error")
		assert.Equal(t, []int{2, 2, 1}, batches, "Expected batches of at most two texts")
		require.Len(t, embeddings, 5, "Expected one embedding per text")
		for i, embedding := range embeddings {
			assert.Equal(t, float32(i+1), embedding[0], "Expected embeddings in input order")
		}
	})

	t.Run("Single text is embedded", func(t *testing.T) {
		embedder := mustEmbedder(t, mockEmbedFunc, 4, 2)

		embedding, err := embedder.Embed(ctx, "fireball")

		require.NoError(t, err, "Expected Embed to not return an error")
		assert.Len(t, embedding, 4, "Expected the configured dimension")
	})

	t.Run("Wrong dimension returns an error", func(t *testing.T) {
		embedder := mustEmbedder(t, mockEmbedFunc, 8, 2)

		_, err := embedder.Embed(ctx, "fireball")

		assert.Error(t, err, "Expected a dimension mismatch error")
		assert.Contains(t, err.Error(), "expected 8", "Expected specific error message")
	})

	t.Run("Count mismatch returns an error", func(t *testing.T) {
		embed := func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 2, 3, 4}}, nil
		}
		embedder := mustEmbedder(t, embed, 4, 8)

		_, err := embedder.EmbedMany(ctx, []string{"a", "b"})

		assert.Error(t, err, "Expected a count mismatch error")
	})

	t.Run("Embed function error is returned", func(t *testing.T) {
		embedder := mustEmbedder(t, mockEmbedFuncError, 4, 8)

		_, err := embedder.Embed(ctx, "fireball")

		assert.Error(t, err, "Expected the embed error")
		assert.Contains(t, err.Error(), "embedding error", "Expected the embed error message")
	})
}

func TestDefaultEmbedder(t *testing.T) {
	// Note: DefaultEmbedder uses hugot which requires downloading models
	// These tests may take longer on first run
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	ctx := context.Background()
	embedder, err := DefaultEmbedder(t.TempDir(), DefaultEmbeddingModel, 768, 16)
	require.NoError(t, err, "Expected DefaultEmbedder to not return an error")
	defer embedder.Close()

	t.Run("Generate embedding for text", func(t *testing.T) {
		embedding, err := embedder.Embed(ctx, "This is a test sentence.")

		require.NoError(t, err)
		assert.Equal(t, 768, len(embedding), "all-mpnet-base-v2 produces 768-dimensional embeddings")

		// Verify embedding contains non-zero values
		hasNonZero := false
		for _, val := range embedding {
			if val != 0 {
				hasNonZero = true
				break
			}
		}
		assert.True(t, hasNonZero, "Embedding should contain non-zero values")
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		text := "Deterministic embedding test"
		embedding1, err1 := embedder.Embed(ctx, text)
		require.NoError(t, err1)

		embedding2, err2 := embedder.Embed(ctx, text)
		require.NoError(t, err2)

		for i := range embedding1 {
			assert.InDelta(t, embedding1[i], embedding2[i], 0.0001, "Same text should produce same embedding")
		}
	})

	t.Run("Similar texts have similar embeddings", func(t *testing.T) {
		embeddings, err := embedder.EmbedMany(ctx, []string{
			"The wizard casts a fireball",
			"A mage throws a ball of fire",
			"Quantum physics is complex",
		})
		require.NoError(t, err)

		similarity12 := cosineSimilarity(embeddings[0], embeddings[1])
		similarity13 := cosineSimilarity(embeddings[0], embeddings[2])

		assert.Greater(t, similarity12, similarity13,
			"Semantically similar texts should have higher similarity")
	})

	t.Run("Handle very long text", func(t *testing.T) {
		longText := strings.Repeat("This is a sentence that contributes to making the text very long. ", 100)

		embedding, err := embedder.Embed(ctx, longText)

		require.NoError(t, err)
		assert.Equal(t, 768, len(embedding))
	})
}
