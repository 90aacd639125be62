// Package idempotency implements the idempotency registry: a key ->
// orderId mapping that lets the engine tell a brand-new submission from a
// retried one before any order row is created. The reservation happens
// inside the same transaction as order creation rather than as a
// separate pre-check, closing the race a check-then-create sequence
// would otherwise leave open between two concurrent submissions of the
// same key.
package idempotency

import (
	"context"
	"errors"

	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"gorm.io/gorm"
)

// Outcome reports whether Reserve created a fresh reservation or found
// one already recorded for this key.
type Outcome int

const (
	Created Outcome = iota
	Existing
)

// Registry manages idempotency records.
type Registry struct{}

func NewRegistry() *Registry {
	return &Registry{}
}

// Reserve looks up key within tx. If no record exists it inserts one
// pointing at orderID and returns Created. If a record already exists it
// returns Existing and the orderID it was created with, which the caller
// must use instead of orderID. Must run inside the same transaction as
// the order insert it guards.
func (r *Registry) Reserve(ctx context.Context, tx *gorm.DB, key, orderID string) (Outcome, string, error) {
	if key == "" {
		// No idempotency key supplied: every submission is its own order.
		return Created, orderID, nil
	}

	var existing types.IdempotencyRecord
	err := tx.WithContext(ctx).Where("key = ?", key).First(&existing).Error
	switch {
	case err == nil:
		return Existing, existing.OrderID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec := types.IdempotencyRecord{Key: key, OrderID: orderID}
		if err := tx.WithContext(ctx).Create(&rec).Error; err != nil {
			return Created, "", types.Wrap(types.KindConflict, "idempotency key race", err)
		}
		return Created, orderID, nil
	default:
		return Created, "", store.Classify(err, "idempotency lookup")
	}
}
