// Package testutil provides an in-memory database for package tests that
// need a real GORM/SQLite handle rather than a mock, mirroring how the
// production code is wired in cmd/server.
package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/ksred/order-core/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter atomic.Uint64

// TB is the subset of testing.TB (also satisfied by *rapid.T) that
// NewTestDB needs, allowing it to be used from both regular tests and
// rapid property checks.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// NewTestDB opens a fresh in-memory SQLite database with the full schema
// migrated, scoped to t's lifetime.
func NewTestDB(t TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&types.Order{},
		&types.Trade{},
		&types.Holding{},
		&types.OrderStateLog{},
		&types.IdempotencyRecord{},
		&types.Investor{},
		&types.Asset{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
