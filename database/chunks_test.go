package database

import (
	"context"
	"testing"

	"github.com/siherrmann/grimoire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 4

// rebuildTestIndex replaces the live index with one document holding one chunk per axis
func rebuildTestIndex(t *testing.T, documentsDbHandler *DocumentsDBHandler, chunksDbHandler *ChunksDBHandler, source string, axes ...int) int {
	ctx := context.Background()

	err := chunksDbHandler.BeginRebuild(ctx)
	require.NoError(t, err, "Expected BeginRebuild to not return an error")

	doc := model.NewDocumentFromPDF("data/pdfs/"+source, "", 1)
	doc.ChunkCount = len(axes)
	err = documentsDbHandler.InsertStagingDocument(ctx, doc)
	require.NoError(t, err, "Expected InsertStagingDocument to not return an error")

	chunks := []*model.Chunk{}
	for i, axis := range axes {
		chunks = append(chunks, &model.Chunk{
			DocumentRID: doc.RID,
			Source:      doc.Source,
			ChunkID:     i,
			TotalChunks: len(axes),
			CharCount:   len("chunk text"),
			Text:        "chunk text",
			Embedding:   unitVector(testDimension, axis),
			Metadata:    model.Metadata{"axis": axis},
		})
	}
	err = chunksDbHandler.InsertStagingChunks(ctx, chunks)
	require.NoError(t, err, "Expected InsertStagingChunks to not return an error")

	count, err := chunksDbHandler.SwapRebuild(ctx)
	require.NoError(t, err, "Expected SwapRebuild to not return an error")

	return count
}

func TestChunksNewChunksDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewChunksDBHandler", func(t *testing.T) {
		// Create documents handler first to ensure documents table exists (needed for foreign key)
		_, err := NewDocumentsDBHandler(database, true)
		require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")

		chunksDbHandler, err := NewChunksDBHandler(database, testDimension, true)
		assert.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
		require.NotNil(t, chunksDbHandler, "Expected NewChunksDBHandler to return a non-nil instance")
		require.NotNil(t, chunksDbHandler.db, "Expected NewChunksDBHandler to have a non-nil database instance")
		assert.Equal(t, testDimension, chunksDbHandler.Dimension(), "Expected the configured dimension")
	})

	t.Run("Invalid call NewChunksDBHandler with nil database", func(t *testing.T) {
		_, err := NewChunksDBHandler(nil, testDimension, false)
		assert.Error(t, err, "Expected error when creating ChunksDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call NewChunksDBHandler with zero dimension", func(t *testing.T) {
		_, err := NewChunksDBHandler(database, 0, false)
		assert.Error(t, err, "Expected error when creating ChunksDBHandler without a dimension")
	})
}

func TestChunksRebuild(t *testing.T) {
	database := initDB(t)
	documentsDbHandler, chunksDbHandler := initIndex(t, database, testDimension)
	ctx := context.Background()

	t.Run("Rebuild swaps staged chunks into place", func(t *testing.T) {
		count := rebuildTestIndex(t, documentsDbHandler, chunksDbHandler, "phb.pdf", 0, 1, 2)
		assert.Equal(t, 3, count, "Expected swap to report the staged chunk count")

		live, err := chunksDbHandler.CountChunks(ctx)
		require.NoError(t, err, "Expected CountChunks to not return an error")
		assert.Equal(t, 3, live, "Expected live chunk count to match")

		docs, err := documentsDbHandler.CountDocuments(ctx)
		require.NoError(t, err, "Expected CountDocuments to not return an error")
		assert.Equal(t, 1, docs, "Expected one live document")
	})

	t.Run("Second rebuild replaces the first", func(t *testing.T) {
		count := rebuildTestIndex(t, documentsDbHandler, chunksDbHandler, "dmg.pdf", 3)
		assert.Equal(t, 1, count, "Expected swap to report the staged chunk count")

		chunks, err := chunksDbHandler.SelectChunksBySource(ctx, "phb.pdf")
		require.NoError(t, err, "Expected SelectChunksBySource to not return an error")
		assert.Empty(t, chunks, "Expected chunks of the previous build to be gone")

		documents, err := documentsDbHandler.SelectAllDocuments(ctx)
		require.NoError(t, err, "Expected SelectAllDocuments to not return an error")
		require.Len(t, documents, 1, "Expected one live document")
		assert.Equal(t, "dmg.pdf", documents[0].Source, "Expected the rebuilt document")
	})

	t.Run("Aborted rebuild leaves live chunks untouched", func(t *testing.T) {
		err := chunksDbHandler.BeginRebuild(ctx)
		require.NoError(t, err, "Expected BeginRebuild to not return an error")

		err = chunksDbHandler.AbortRebuild(ctx)
		require.NoError(t, err, "Expected AbortRebuild to not return an error")

		live, err := chunksDbHandler.CountChunks(ctx)
		require.NoError(t, err, "Expected CountChunks to not return an error")
		assert.Equal(t, 1, live, "Expected live chunks to survive the abort")
	})

	t.Run("Swap without staged tables returns an error", func(t *testing.T) {
		_, err := chunksDbHandler.SwapRebuild(ctx)
		assert.Error(t, err, "Expected SwapRebuild without BeginRebuild to return an error")
	})

	t.Run("Insert with wrong embedding dimension returns an error", func(t *testing.T) {
		err := chunksDbHandler.InsertStagingChunks(ctx, []*model.Chunk{
			{Source: "phb.pdf", ChunkID: 0, Text: "x", Embedding: []float32{1, 0}},
		})
		assert.Error(t, err, "Expected InsertStagingChunks to reject a wrong dimension")
	})
}

func TestChunksSelectByDistance(t *testing.T) {
	database := initDB(t)
	documentsDbHandler, chunksDbHandler := initIndex(t, database, testDimension)
	ctx := context.Background()

	rebuildTestIndex(t, documentsDbHandler, chunksDbHandler, "phb.pdf", 2, 0, 1)

	t.Run("Nearest chunk comes first", func(t *testing.T) {
		chunks, err := chunksDbHandler.SelectChunksByDistance(ctx, unitVector(testDimension, 0), 3)
		require.NoError(t, err, "Expected SelectChunksByDistance to not return an error")
		require.Len(t, chunks, 3, "Expected three chunks")

		assert.Equal(t, 1, chunks[0].ChunkID, "Expected the chunk along the query axis first")
		assert.InDelta(t, 0.0, chunks[0].Distance, 1e-6, "Expected zero distance for an identical vector")
		for i := 1; i < len(chunks); i++ {
			assert.LessOrEqual(t, chunks[i-1].Distance, chunks[i].Distance, "Expected ascending distances")
		}
		assert.Equal(t, "chunk text", chunks[0].Text, "Expected chunk text to be returned")
		assert.Equal(t, 3, chunks[0].TotalChunks, "Expected total chunks to be returned")
	})

	t.Run("Limit caps the result", func(t *testing.T) {
		chunks, err := chunksDbHandler.SelectChunksByDistance(ctx, unitVector(testDimension, 0), 1)
		require.NoError(t, err, "Expected SelectChunksByDistance to not return an error")
		assert.Len(t, chunks, 1, "Expected one chunk")
	})

	t.Run("Query with wrong dimension returns an error", func(t *testing.T) {
		_, err := chunksDbHandler.SelectChunksByDistance(ctx, []float32{1, 0}, 3)
		assert.Error(t, err, "Expected SelectChunksByDistance to reject a wrong dimension")
	})

	t.Run("Chunks by source are in chunk order", func(t *testing.T) {
		chunks, err := chunksDbHandler.SelectChunksBySource(ctx, "phb.pdf")
		require.NoError(t, err, "Expected SelectChunksBySource to not return an error")
		require.Len(t, chunks, 3, "Expected three chunks")
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.ChunkID, "Expected chunk ids in order")
		}
	})
}

func TestChangeIndexTypeOptions(t *testing.T) {
	database := initDB(t)
	_, chunksDbHandler := initIndex(t, database, testDimension)
	ctx := context.Background()

	t.Run("Change index to HNSW with default params", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexTypeHNSW, IndexOptions{})
		assert.NoError(t, err, "Expected ChangeIndexType to hnsw to not return an error")
	})

	t.Run("Change index to HNSW with custom params", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexTypeHNSW, IndexOptions{M: 32, EfConstruction: 128})
		assert.NoError(t, err, "Expected ChangeIndexType to hnsw with custom params to not return an error")
	})

	t.Run("Change index to IVFFlat", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexTypeIVFFlat, IndexOptions{Lists: 10})
		assert.NoError(t, err, "Expected ChangeIndexType to ivfflat to not return an error")
	})

	t.Run("Unsupported index type returns an error", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, "btree", IndexOptions{})
		assert.Error(t, err, "Expected ChangeIndexType to reject an unknown type")
		assert.Contains(t, err.Error(), "unsupported index type", "Expected specific error message")
	})
}
