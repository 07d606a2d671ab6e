package testinfra

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xelth-com/pdbsync/internal/config"
	"github.com/xelth-com/pdbsync/internal/database"
	"github.com/xelth-com/pdbsync/internal/models"
)

// NewBackend returns a migrated SQLite backend living in t.TempDir().
func NewBackend(t *testing.T, opts ...database.Option) *database.Backend {
	t.Helper()

	db, err := database.Connect(config.DatabaseConfig{
		Engine:   config.EngineSQLite,
		Database: filepath.Join(t.TempDir(), "peeringdb.sqlite3"),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	b := database.NewBackend(db, models.Registry(), opts...)
	if err := b.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return b
}
