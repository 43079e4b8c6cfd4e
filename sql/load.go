package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed documents.sql
var documentsSQL string

//go:embed chunks.sql
var chunksSQL string

//go:embed cache.sql
var cacheSQL string

//go:embed history.sql
var historySQL string

// Function lists for verification
var DocumentsFunctions = []string{
	"create_documents_table",
	"init_documents",
	"insert_staging_document",
	"select_all_documents",
	"count_documents",
}

var ChunksFunctions = []string{
	"create_chunks_table",
	"init_chunks",
	"begin_chunks_rebuild",
	"abort_chunks_rebuild",
	"swap_chunks",
	"insert_staging_chunk",
	"select_chunks_by_distance",
	"select_chunks_by_source",
	"count_chunks",
}

var CacheFunctions = []string{
	"init_cache",
	"upsert_cache_entry",
	"select_cache_entry",
	"delete_all_cache_entries",
	"count_cache_entries",
}

var HistoryFunctions = []string{
	"init_history",
	"insert_history_entry",
	"select_all_history_entries",
	"delete_all_history_entries",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadDocumentsSql loads document-related SQL functions
func LoadDocumentsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "documents", documentsSQL, DocumentsFunctions, force)
}

// LoadChunksSql loads chunk-related SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "chunks", chunksSQL, ChunksFunctions, force)
}

// LoadCacheSql loads cache-related SQL functions
func LoadCacheSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "cache", cacheSQL, CacheFunctions, force)
}

// LoadHistorySql loads history-related SQL functions
func LoadHistorySql(db *sql.DB, force bool) error {
	return loadFunctions(db, "history", historySQL, HistoryFunctions, force)
}

// LoadAllSql loads all SQL functions, documents before chunks
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadDocumentsSql(db, force); err != nil {
		return err
	}

	if err := LoadChunksSql(db, force); err != nil {
		return err
	}

	if err := LoadCacheSql(db, force); err != nil {
		return err
	}

	if err := LoadHistorySql(db, force); err != nil {
		return err
	}

	return nil
}

// loadFunctions executes the SQL script unless all its functions exist already and force is false
func loadFunctions(db *sql.DB, name string, script string, sqlFunctions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, sqlFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, sqlFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
