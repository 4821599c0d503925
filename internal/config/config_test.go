package config_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saulo-duarte/okr-progress/internal/config"
)

func TestLoadSettings(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DATABASE_DRIVER", "")
		t.Setenv("DATABASE_DSN", "")
		t.Setenv("TX_MAX_RETRIES", "")
		t.Setenv("REFRESH_SCHEDULE", "")
		t.Setenv("PORT", "")
		t.Setenv("CORS_ALLOWED_ORIGINS", "")

		s := config.LoadSettings()
		assert.Equal(t, config.DriverPostgres, s.DatabaseDriver)
		assert.Equal(t, 3, s.MaxRetries)
		assert.Equal(t, "0 5 0 * * *", s.RefreshSchedule)
		assert.Equal(t, "8080", s.Port)
		assert.Empty(t, s.AllowedOrigins)
	})

	t.Run("SQLiteDefaultsDSN", func(t *testing.T) {
		t.Setenv("DATABASE_DRIVER", "SQLite")
		t.Setenv("DATABASE_DSN", "")
		t.Setenv("TX_MAX_RETRIES", "not-a-number")

		s := config.LoadSettings()
		assert.Equal(t, config.DriverSQLite, s.DatabaseDriver)
		assert.Equal(t, "okr.db", s.DatabaseDSN)
		assert.Equal(t, 3, s.MaxRetries)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("TX_MAX_RETRIES", "5")
		t.Setenv("PORT", "9000")
		t.Setenv("CORS_ALLOWED_ORIGINS", " https://app.example.com, ,http://localhost:3000 ")

		s := config.LoadSettings()
		assert.Equal(t, 5, s.MaxRetries)
		assert.Equal(t, "9000", s.Port)
		assert.Equal(t, []string{"https://app.example.com", "http://localhost:3000"}, s.AllowedOrigins)
	})
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "okr.db")

	db, err := config.Open(config.DriverSQLite, path)
	require.NoError(t, err)

	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)

	_, err = config.Open("oracle", "whatever")
	assert.Error(t, err)

	_, err = config.Open(config.DriverPostgres, "")
	assert.Error(t, err)
}

func TestWithContextCarriesRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	entry := config.WithContext(ctx)
	assert.Equal(t, "req-42", entry.Data["request_id"])

	assert.NotContains(t, config.WithContext(context.Background()).Data, "request_id")
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	config.Error(rec, 409, "refused", "MinimumKeyResultsRequired")

	assert.Equal(t, 409, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"refused","reason":"MinimumKeyResultsRequired"}`, rec.Body.String())
}
