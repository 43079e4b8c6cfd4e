package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
	loadSql "github.com/siherrmann/grimoire/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	BeginRebuild(ctx context.Context) error
	InsertStagingChunks(ctx context.Context, chunks []*model.Chunk) error
	SwapRebuild(ctx context.Context) (int, error)
	AbortRebuild(ctx context.Context) error
	SelectChunksByDistance(ctx context.Context, embedding []float32, limit int) ([]*model.Chunk, error)
	SelectChunksBySource(ctx context.Context, source string) ([]*model.Chunk, error)
	CountChunks(ctx context.Context) (int, error)
}

// ChunksDBHandler handles chunk-related database operations.
// It is the vector index: live reads go to 'chunks', rebuilds write to 'chunks_staging'.
type ChunksDBHandler struct {
	db        *helper.Database
	dimension int
}

// NewChunksDBHandler creates a new chunks database handler.
// It loads chunk-related SQL functions and creates the table with a vector column of embeddingDim.
// The documents handler must be created first.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:        db,
		dimension: embeddingDim,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", "dimension", embeddingDim)

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, h.dimension)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// Dimension returns the configured vector dimension
func (h *ChunksDBHandler) Dimension() int {
	return h.dimension
}

// BeginRebuild creates empty staging tables for chunks and documents,
// dropping what an aborted rebuild may have left behind.
func (h *ChunksDBHandler) BeginRebuild(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT begin_chunks_rebuild($1);`, h.dimension)
	if err != nil {
		return helper.NewError("begin rebuild", err)
	}
	return nil
}

// InsertStagingChunks inserts chunks into the staging table in one transaction.
// Every chunk must carry an embedding of the handler's dimension.
func (h *ChunksDBHandler) InsertStagingChunks(ctx context.Context, chunks []*model.Chunk) error {
	for _, chunk := range chunks {
		if !chunk.HasEmbedding(h.dimension) {
			return helper.NewError("validate chunk", fmt.Errorf("chunk %s/%d has embedding dimension %d, expected %d", chunk.Source, chunk.ChunkID, len(chunk.Embedding), h.dimension))
		}
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `SELECT insert_staging_chunk($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return helper.NewError("prepare", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		err := stmt.QueryRowContext(
			ctx,
			chunk.DocumentRID,
			chunk.Source,
			chunk.ChunkID,
			chunk.TotalChunks,
			chunk.CharCount,
			chunk.Text,
			pgvector.NewVector(chunk.Embedding),
			chunk.Metadata,
		).Scan(&chunk.CreatedAt)
		if err != nil {
			return helper.NewError(fmt.Sprintf("insert chunk %s/%d", chunk.Source, chunk.ChunkID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	return nil
}

// SwapRebuild replaces the live tables with the staging tables and returns the new chunk count
func (h *ChunksDBHandler) SwapRebuild(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT swap_chunks();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("swap", err)
	}

	h.db.Logger.Info("Swapped rebuilt chunks into place", "chunks", count)

	return count, nil
}

// AbortRebuild drops the staging tables
func (h *ChunksDBHandler) AbortRebuild(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT abort_chunks_rebuild();`)
	if err != nil {
		return helper.NewError("abort rebuild", err)
	}
	return nil
}

// SelectChunksByDistance returns the limit nearest chunks by cosine distance, closest first
func (h *ChunksDBHandler) SelectChunksByDistance(ctx context.Context, embedding []float32, limit int) ([]*model.Chunk, error) {
	if len(embedding) != h.dimension {
		return nil, helper.NewError("validate embedding", fmt.Errorf("query embedding has dimension %d, index has %d", len(embedding), h.dimension))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_distance($1, $2)`,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.DocumentRID,
			&chunk.Source,
			&chunk.ChunkID,
			&chunk.TotalChunks,
			&chunk.CharCount,
			&chunk.Text,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySource returns all chunks of one source in chunk order
func (h *ChunksDBHandler) SelectChunksBySource(ctx context.Context, source string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_source($1)`,
		source,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.DocumentRID,
			&chunk.Source,
			&chunk.ChunkID,
			&chunk.TotalChunks,
			&chunk.CharCount,
			&chunk.Text,
			&chunk.Metadata,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// CountChunks returns the number of live chunks
func (h *ChunksDBHandler) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count", err)
	}
	return count, nil
}
