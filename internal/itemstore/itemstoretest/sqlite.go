// Package itemstoretest opens throwaway item stores for package tests.
package itemstoretest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/thiagodiasb91/drop-shop-site-sub000/internal/itemstore"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/db"
	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDB returns an isolated in-memory SQLite database with the items table.
// A single connection serializes concurrent writers the way row locks would.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(&models.Item{}); err != nil {
		t.Fatalf("migrate items: %v", err)
	}
	return conn
}

// New returns a GORM-backed item store on a fresh database.
func New(t testing.TB) itemstore.Store {
	t.Helper()
	return itemstore.NewGormStore(OpenDB(t))
}
