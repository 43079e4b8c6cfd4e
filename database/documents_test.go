package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/grimoire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentsNewDocumentsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewDocumentsDBHandler", func(t *testing.T) {
		documentsDbHandler, err := NewDocumentsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")
		require.NotNil(t, documentsDbHandler, "Expected NewDocumentsDBHandler to return a non-nil instance")
		require.NotNil(t, documentsDbHandler.db, "Expected NewDocumentsDBHandler to have a non-nil database instance")
		require.NotNil(t, documentsDbHandler.db.Instance, "Expected NewDocumentsDBHandler to have a non-nil database connection instance")
	})

	t.Run("Invalid call NewDocumentsDBHandler with nil database", func(t *testing.T) {
		_, err := NewDocumentsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating DocumentsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestDocumentsInsertStaging(t *testing.T) {
	database := initDB(t)
	documentsDbHandler, chunksDbHandler := initIndex(t, database, testDimension)
	ctx := context.Background()

	t.Run("Insert without a running rebuild returns an error", func(t *testing.T) {
		err := chunksDbHandler.AbortRebuild(ctx)
		require.NoError(t, err, "Expected AbortRebuild to not return an error")

		doc := model.NewDocumentFromPDF("data/pdfs/phb.pdf", "", 300)
		err = documentsDbHandler.InsertStagingDocument(ctx, doc)
		assert.Error(t, err, "Expected InsertStagingDocument to fail without staging tables")
	})

	t.Run("Insert during a rebuild assigns a rid", func(t *testing.T) {
		err := chunksDbHandler.BeginRebuild(ctx)
		require.NoError(t, err, "Expected BeginRebuild to not return an error")
		defer chunksDbHandler.AbortRebuild(ctx)

		doc := model.NewDocumentFromPDF("data/pdfs/Monster Manual.pdf", "", 352)
		doc.ChunkCount = 12
		err = documentsDbHandler.InsertStagingDocument(ctx, doc)
		require.NoError(t, err, "Expected InsertStagingDocument to not return an error")

		assert.NotEqual(t, uuid.Nil, doc.RID, "Expected a generated rid")
		assert.False(t, doc.CreatedAt.IsZero(), "Expected a creation time")
		assert.Equal(t, "Monster Manual", doc.Title, "Expected the title to survive the insert")
		assert.Equal(t, 352, doc.PageCount, "Expected the page count to survive the insert")
		assert.Equal(t, 12, doc.ChunkCount, "Expected the chunk count to survive the insert")
		assert.Equal(t, "data/pdfs/Monster Manual.pdf", doc.Metadata.String("path"), "Expected metadata to survive the insert")
	})
}

func TestDocumentsSelectAll(t *testing.T) {
	database := initDB(t)
	documentsDbHandler, chunksDbHandler := initIndex(t, database, testDimension)
	ctx := context.Background()

	err := chunksDbHandler.BeginRebuild(ctx)
	require.NoError(t, err, "Expected BeginRebuild to not return an error")

	for _, path := range []string{"data/pdfs/xanathar.pdf", "data/pdfs/basic.pdf"} {
		doc := model.NewDocumentFromPDF(path, "", 10)
		err = documentsDbHandler.InsertStagingDocument(ctx, doc)
		require.NoError(t, err, "Expected InsertStagingDocument to not return an error")
	}

	_, err = chunksDbHandler.SwapRebuild(ctx)
	require.NoError(t, err, "Expected SwapRebuild to not return an error")

	t.Run("Select all documents ordered by source", func(t *testing.T) {
		documents, err := documentsDbHandler.SelectAllDocuments(ctx)
		require.NoError(t, err, "Expected SelectAllDocuments to not return an error")
		require.Len(t, documents, 2, "Expected two documents")
		assert.Equal(t, "basic.pdf", documents[0].Source, "Expected sources in ascending order")
		assert.Equal(t, "xanathar.pdf", documents[1].Source, "Expected sources in ascending order")
	})

	t.Run("Count documents", func(t *testing.T) {
		count, err := documentsDbHandler.CountDocuments(ctx)
		require.NoError(t, err, "Expected CountDocuments to not return an error")
		assert.Equal(t, 2, count, "Expected two documents")
	})
}
