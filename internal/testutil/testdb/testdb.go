// Package testdb поднимает одноразовую базу для тестов: файл во
// временном каталоге, миграции и первичные данные.
package testdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/otabek-dev/mahalla-admin/internal/db"
)

const AdminLogin = "admin"
const AdminPassword = "test-password"

// Open возвращает чистую мигрированную базу. Файл живёт в t.TempDir()
// и удаляется вместе с ним.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("открытие тестовой базы: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("миграция тестовой базы: %v", err)
	}
	if err := db.Seed(context.Background(), database, AdminLogin, AdminPassword); err != nil {
		t.Fatalf("наполнение тестовой базы: %v", err)
	}
	return database
}

// Logger — глушитель логов для тестов.
func Logger() *zap.Logger { return zap.NewNop() }
