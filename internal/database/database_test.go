package database

import (
	"context"
	"io/fs"
	"testing"

	"example.com/finance-visualizer/backend/internal/config"
)

// TestOpenDisabled проверяет, что выключенная база не открывается.
func TestOpenDisabled(t *testing.T) {
	pool, err := Open(context.Background(), config.DatabaseConfig{Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pool != nil {
		t.Fatal("expected nil pool")
	}

	if err := Migrate(config.DatabaseConfig{Enabled: false}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

// TestMigrationsEmbedded проверяет наличие парных up/down миграций.
func TestMigrationsEmbedded(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(ups) == 0 || len(ups) != len(downs) {
		t.Fatalf("expected paired migrations, got %d up and %d down", len(ups), len(downs))
	}
}
