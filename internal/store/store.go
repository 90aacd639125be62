// Package store wraps the GORM/SQLite handle the rest of the core shares,
// providing a single transaction helper and a classifier that turns gorm's
// sentinel errors into the types.Kind taxonomy the rest of the system
// reasons about.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/ksred/order-core/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Store holds the shared database handle.
type Store struct {
	DB *gorm.DB
}

// New wraps an opened *gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// WithTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise. It generalizes the begin/defer-recover/commit
// sequence the engine would otherwise repeat at every call site that
// touches more than one table (Order+Trade+Holding, Order+IdempotencyRecord).
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Error; err != nil {
		return types.Wrap(types.KindTransient, "begin transaction", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Msg("store: commit failed")
		return types.Wrap(types.KindTransient, "commit transaction", err)
	}
	return nil
}

// Classify maps a gorm/sql error onto a types.Kind-tagged error. Callers
// that already know the semantic Kind (validation, insufficient holdings)
// should construct a *types.Error directly instead of routing through
// here, which exists for the "just came back from gorm" case.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Wrap(types.KindNotFound, message, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return types.Wrap(types.KindConflict, message, err)
	}

	errStr := err.Error()
	switch {
	case containsAny(errStr, "database is locked", "database table is locked", "SQLITE_BUSY", "SQLITE_LOCKED"):
		return types.Wrap(types.KindTransient, message, err)
	case containsAny(errStr, "UNIQUE constraint failed"):
		return types.Wrap(types.KindConflict, message, err)
	}

	return types.Wrap(types.KindFatal, message, err)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
