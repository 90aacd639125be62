// Package statelog appends one record per order state transition, kept
// in its own table so the full transition history stays queryable rather
// than overwritten in place. It writes records only; it does not log.
package statelog

import (
	"context"
	"time"

	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"gorm.io/gorm"
)

// Writer appends transition records.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// Append records a transition inside tx. loggedBy identifies the
// component driving the transition (e.g. "engine", "settlement").
func (w *Writer) Append(ctx context.Context, tx *gorm.DB, orderID string, from, to types.Status, reason, loggedBy string) error {
	rec := types.OrderStateLog{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		LoggedBy:   loggedBy,
		LoggedAt:   time.Now(),
	}
	if err := tx.WithContext(ctx).Create(&rec).Error; err != nil {
		return store.Classify(err, "append state log")
	}
	return nil
}

// History returns every transition for orderID, oldest first.
func (w *Writer) History(ctx context.Context, db *gorm.DB, orderID string) ([]types.OrderStateLog, error) {
	var logs []types.OrderStateLog
	err := db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&logs).Error
	if err != nil {
		return nil, store.Classify(err, "load state log")
	}
	return logs, nil
}
