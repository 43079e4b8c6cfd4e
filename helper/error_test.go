package helper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps error with operation", func(t *testing.T) {
		base := errors.New("connection refused")
		err := NewError("ping database", base)

		assert.EqualError(t, err, "ping database: connection refused")
		assert.ErrorIs(t, err, base, "Expected wrapped error to be reachable")
	})

	t.Run("Nil error stays nil", func(t *testing.T) {
		assert.NoError(t, NewError("noop", nil))
	})
}

func TestNewDatabaseConfiguration(t *testing.T) {
	t.Run("Reads configuration from environment", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")
		t.Setenv("DB_SCHEMA", "")
		t.Setenv("DB_SSLMODE", "")

		config, err := NewDatabaseConfiguration()
		assert.NoError(t, err)
		assert.Equal(t, "5433", config.Port)
		assert.Equal(t, "public", config.Schema, "Expected default schema")
		assert.Equal(t, "disable", config.SSLMode, "Expected default sslmode")
		assert.Contains(t, config.DSN(), "localhost:5433")
		assert.Contains(t, config.DSN(), "sslmode=disable")
	})

	t.Run("Missing required values return an error", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")
		t.Setenv("DB_HOST", "")

		_, err := NewDatabaseConfiguration()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DB_HOST")
	})
}

func TestParseLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("warn").String())
	assert.Equal(t, "INFO", ParseLevel("nonsense").String(), "Expected unknown level to fall back to info")
}
