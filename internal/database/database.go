// Package database wires the GORM/SQLite handle and runs schema
// migration for the core's five persisted tables (orders, trades,
// holdings, order_state_logs, idempotency_keys) plus the read-only
// investor/asset reference tables. A plain AutoMigrate call suffices
// here since none of these tables need a hand-written migration step.
package database

import (
	"github.com/ksred/order-core/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the SQLite file at path and migrates the schema.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
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
		return nil, err
	}

	return db, nil
}
