// Package testutil wires real infrastructure for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"itemsim/internal/config"
	"itemsim/internal/infrastructure/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in a per-test temp directory.
// A single connection keeps SQLite writers from racing each other.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            filepath.Join(t.TempDir(), "itemsim.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		LogLevel:        "silent",
	}
	db, err := database.Open(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// Config returns defaults with a fixed JWT secret.
func Config() *config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Database.Driver = "sqlite"
	return cfg
}
