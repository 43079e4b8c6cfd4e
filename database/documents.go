package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
	loadSql "github.com/siherrmann/grimoire/sql"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertStagingDocument(ctx context.Context, doc *model.Document) error
	SelectAllDocuments(ctx context.Context) ([]*model.Document, error)
	CountDocuments(ctx context.Context) (int, error)
}

// DocumentsDBHandler handles document-related database operations.
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// InsertStagingDocument inserts a document into the staging table of a running rebuild.
// The generated RID and CreatedAt are written back to doc.
func (h *DocumentsDBHandler) InsertStagingDocument(ctx context.Context, doc *model.Document) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_staging_document($1, $2, $3, $4, $5)`,
		doc.Title,
		doc.Source,
		doc.PageCount,
		doc.ChunkCount,
		doc.Metadata,
	)

	err := row.Scan(
		&doc.RID,
		&doc.Title,
		&doc.Source,
		&doc.PageCount,
		&doc.ChunkCount,
		&doc.Metadata,
		&doc.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectAllDocuments returns all live documents ordered by source
func (h *DocumentsDBHandler) SelectAllDocuments(ctx context.Context) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_all_documents()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		err := rows.Scan(
			&doc.RID,
			&doc.Title,
			&doc.Source,
			&doc.PageCount,
			&doc.ChunkCount,
			&doc.Metadata,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// CountDocuments returns the number of live documents
func (h *DocumentsDBHandler) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_documents();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count", err)
	}
	return count, nil
}
