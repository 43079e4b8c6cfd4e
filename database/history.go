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

// HistoryDBHandlerFunctions defines the interface for chat history database operations.
type HistoryDBHandlerFunctions interface {
	InsertHistoryEntry(ctx context.Context, entry *model.HistoryEntry) error
	SelectAllHistoryEntries(ctx context.Context, limit int) ([]*model.HistoryEntry, error)
	DeleteAllHistoryEntries(ctx context.Context) (int, error)
}

// HistoryDBHandler handles chat history database operations.
type HistoryDBHandler struct {
	db *helper.Database
}

// NewHistoryDBHandler creates a new chat history database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewHistoryDBHandler(db *helper.Database, force bool) (*HistoryDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	historyDbHandler := &HistoryDBHandler{
		db: db,
	}

	err := loadSql.LoadHistorySql(historyDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load history sql", err)
	}

	err = historyDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized HistoryDBHandler")

	return historyDbHandler, nil
}

// CreateTable creates the 'chat_history' table in the database.
func (h *HistoryDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_history();`)
	if err != nil {
		log.Panicf("error initializing chat_history table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chat_history")

	return nil
}

// InsertHistoryEntry appends an answered question to the history
func (h *HistoryDBHandler) InsertHistoryEntry(ctx context.Context, entry *model.HistoryEntry) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_history_entry($1, $2)`,
		entry.Question,
		entry.Result,
	)

	err := row.Scan(
		&entry.ID,
		&entry.RID,
		&entry.Question,
		&entry.Result,
		&entry.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectAllHistoryEntries returns the latest limit history entries, oldest first.
// A limit of zero or less returns all entries.
func (h *HistoryDBHandler) SelectAllHistoryEntries(ctx context.Context, limit int) ([]*model.HistoryEntry, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_all_history_entries($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entries []*model.HistoryEntry
	for rows.Next() {
		entry := &model.HistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.RID,
			&entry.Question,
			&entry.Result,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entries, nil
}

// DeleteAllHistoryEntries clears the history and returns how many entries were removed
func (h *HistoryDBHandler) DeleteAllHistoryEntries(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT delete_all_history_entries();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("delete", err)
	}
	return count, nil
}
