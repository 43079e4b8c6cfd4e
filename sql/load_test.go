package sql

import (
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	t.Run("Initialize database extensions", func(t *testing.T) {
		err := Init(db.Instance)
		assert.NoError(t, err)

		var exists bool
		err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector');").Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "pgvector extension should be created")
	})

	t.Run("Initialize database extensions is idempotent", func(t *testing.T) {
		assert.NoError(t, Init(db.Instance))
		assert.NoError(t, Init(db.Instance))
	})
}

func TestLoadSql(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	loaders := []struct {
		name      string
		load      func(force bool) error
		functions []string
	}{
		{"documents", func(force bool) error { return LoadDocumentsSql(db.Instance, force) }, DocumentsFunctions},
		{"chunks", func(force bool) error { return LoadChunksSql(db.Instance, force) }, ChunksFunctions},
		{"cache", func(force bool) error { return LoadCacheSql(db.Instance, force) }, CacheFunctions},
		{"history", func(force bool) error { return LoadHistorySql(db.Instance, force) }, HistoryFunctions},
	}

	for _, l := range loaders {
		t.Run("Load "+l.name+" SQL functions", func(t *testing.T) {
			require.NoError(t, l.load(false))

			for _, funcName := range l.functions {
				var exists bool
				err := db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);", funcName).Scan(&exists)
				require.NoError(t, err)
				assert.True(t, exists, "Function %s should exist", funcName)
			}
		})

		t.Run("Load "+l.name+" SQL is idempotent with and without force", func(t *testing.T) {
			assert.NoError(t, l.load(false))
			assert.NoError(t, l.load(true))
		})
	}
}

func TestSwapChunks(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	require.NoError(t, LoadAllSql(db.Instance, true))
	_, err := db.Instance.Exec(`SELECT init_documents();`)
	require.NoError(t, err)
	_, err = db.Instance.Exec(`SELECT init_chunks(3);`)
	require.NoError(t, err)

	t.Run("Swap without staged rebuild fails", func(t *testing.T) {
		_, err := db.Instance.Exec(`SELECT abort_chunks_rebuild();`)
		require.NoError(t, err)

		_, err = db.Instance.Exec(`SELECT swap_chunks();`)
		assert.Error(t, err)
	})

	t.Run("Repeated rebuilds keep constraint names stable", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := db.Instance.Exec(`SELECT begin_chunks_rebuild(3);`)
			require.NoError(t, err)

			var count int
			err = db.Instance.QueryRow(`SELECT swap_chunks();`).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		}

		var exists bool
		err := db.Instance.QueryRow(`SELECT to_regclass('idx_chunks_embedding') IS NOT NULL;`).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "Embedding index should carry the live name after a swap")
	})
}
