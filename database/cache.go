package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
	loadSql "github.com/siherrmann/grimoire/sql"
)

// CacheDBHandlerFunctions defines the interface for query cache database operations.
type CacheDBHandlerFunctions interface {
	SelectCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry *model.CacheEntry) error
	DeleteAllCacheEntries(ctx context.Context) (int, error)
	CountCacheEntries(ctx context.Context) (int, error)
}

// CacheDBHandler persists answered queries keyed by their normalized hash.
type CacheDBHandler struct {
	db *helper.Database
}

// NewCacheDBHandler creates a new query cache database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewCacheDBHandler(db *helper.Database, force bool) (*CacheDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	cacheDbHandler := &CacheDBHandler{
		db: db,
	}

	err := loadSql.LoadCacheSql(cacheDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load cache sql", err)
	}

	err = cacheDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized CacheDBHandler")

	return cacheDbHandler, nil
}

// CreateTable creates the 'query_cache' table in the database.
func (h *CacheDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_cache();`)
	if err != nil {
		log.Panicf("error initializing query_cache table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table query_cache")

	return nil
}

// SelectCacheEntry returns the entry stored under key.
// A miss returns nil without an error.
func (h *CacheDBHandler) SelectCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_cache_entry($1)`,
		key,
	)

	entry := &model.CacheEntry{}
	err := row.Scan(
		&entry.Key,
		&entry.Query,
		&entry.Result,
		&entry.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entry, nil
}

// UpsertCacheEntry stores entry, replacing an existing one with the same key
func (h *CacheDBHandler) UpsertCacheEntry(ctx context.Context, entry *model.CacheEntry) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_cache_entry($1, $2, $3)`,
		entry.Key,
		entry.Query,
		entry.Result,
	)

	err := row.Scan(
		&entry.Key,
		&entry.Query,
		&entry.Result,
		&entry.Timestamp,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteAllCacheEntries empties the cache and returns how many entries were removed
func (h *CacheDBHandler) DeleteAllCacheEntries(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT delete_all_cache_entries();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("delete", err)
	}
	return count, nil
}

// CountCacheEntries returns the number of cached queries
func (h *CacheDBHandler) CountCacheEntries(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_cache_entries();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count", err)
	}
	return count, nil
}
