package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/grimoire/helper"
)

// Supported vector index types
const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeIVFFlat = "ivfflat"
)

// IndexOptions tunes the vector index. Zero values fall back to pgvector defaults.
type IndexOptions struct {
	M              int // hnsw
	EfConstruction int // hnsw
	Lists          int // ivfflat
}

// ChangeIndexType rebuilds the live embedding index as HNSW or IVFFlat.
// A later index rebuild recreates the default HNSW index.
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, opts IndexOptions) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var createIndexSQL string
	switch indexType {
	case IndexTypeHNSW:
		m := 16
		efConstruction := 64
		if opts.M > 0 {
			m = opts.M
		}
		if opts.EfConstruction > 0 {
			efConstruction = opts.EfConstruction
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		)
	case IndexTypeIVFFlat:
		lists := 100
		if opts.Lists > 0 {
			lists = opts.Lists
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		)
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Changed vector index", "type", indexType, "m", opts.M, "ef_construction", opts.EfConstruction, "lists", opts.Lists)

	return nil
}
