package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataScan(t *testing.T) {
	t.Run("Scan nil value", func(t *testing.T) {
		var m Metadata
		err := m.Scan(nil)

		require.NoError(t, err)
		assert.NotNil(t, m, "Expected nil database value to produce empty metadata")
		assert.Empty(t, m)
	})

	t.Run("Scan JSONB bytes", func(t *testing.T) {
		var m Metadata
		err := m.Scan([]byte(`{"path":"corpus/phb.pdf","pages":320}`))

		require.NoError(t, err)
		assert.Equal(t, "corpus/phb.pdf", m.String("path"))
		assert.Equal(t, float64(320), m["pages"])
	})

	t.Run("Scan string value", func(t *testing.T) {
		var m Metadata
		err := m.Scan(`{"edition":"5e"}`)

		require.NoError(t, err)
		assert.Equal(t, "5e", m.String("edition"))
	})

	t.Run("Scan unsupported type", func(t *testing.T) {
		var m Metadata
		err := m.Scan(42)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported type")
	})
}

func TestMetadataValue(t *testing.T) {
	t.Run("Nil metadata stores an empty object", func(t *testing.T) {
		var m Metadata
		v, err := m.Value()

		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), v)
	})

	t.Run("String returns empty for non string values", func(t *testing.T) {
		m := Metadata{"pages": 12}
		assert.Equal(t, "", m.String("pages"))
		assert.Equal(t, "", m.String("missing"))
	})
}
