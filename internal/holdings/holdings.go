// Package holdings applies a filled order's effect on an investor's
// position: increasing quantity and re-averaging cost on a buy, decreasing
// quantity (cost basis held constant, reset to zero once the position is
// fully sold) on a sell. Grounded on the
// weighted-average-cost shape clearing.go's margin math uses, rewritten
// against decimalx instead of float64 so repeated partial fills don't
// drift.
package holdings

import (
	"context"
	"errors"

	"github.com/ksred/order-core/internal/decimalx"
	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"gorm.io/gorm"
)

// Mutator applies fills to holdings inside a caller-supplied transaction.
type Mutator struct{}

func NewMutator() *Mutator {
	return &Mutator{}
}

// ApplyFill loads (or creates) the investor's holding in assetID and
// applies the fill, persisting the result. Must run under the same
// per-(investorId,assetId) lock and transaction as the order's
// Filled transition, so concurrent fills against the same position never
// interleave their read-modify-write.
func (m *Mutator) ApplyFill(ctx context.Context, tx *gorm.DB, investorID, assetID string, side types.Side, quantity, price decimalx.Decimal) (*types.Holding, error) {
	var h types.Holding
	err := tx.WithContext(ctx).Where("investor_id = ? AND asset_id = ?", investorID, assetID).First(&h).Error
	switch {
	case err == nil:
		// found
	case errors.Is(err, gorm.ErrRecordNotFound):
		h = types.Holding{InvestorID: investorID, AssetID: assetID, Quantity: decimalx.Zero(), AverageCost: decimalx.Zero()}
	default:
		return nil, store.Classify(err, "load holding")
	}

	switch side {
	case types.SideBuy:
		newQty := h.Quantity.Add(quantity)
		existingCost := h.Quantity.Mul(h.AverageCost)
		fillCost := quantity.Mul(price)
		totalCost := existingCost.Add(fillCost)
		avg, err := totalCost.Quo(newQty)
		if err != nil {
			return nil, types.Wrap(types.KindFatal, "weighted average cost", err)
		}
		h.Quantity = newQty
		h.AverageCost = avg
	case types.SideSell:
		if h.Quantity.LessThan(quantity) {
			return nil, types.New(types.KindInsufficientHoldings, "sell exceeds holding quantity")
		}
		h.Quantity = h.Quantity.Sub(quantity)
		if h.Quantity.IsZero() {
			h.AverageCost = decimalx.Zero()
		}
		// average cost is unchanged by a sell unless the position is closed
		// out, in which case it is reset to zero; realized P&L is out of scope.
	default:
		return nil, types.New(types.KindFatal, "unknown order side")
	}

	if err := tx.WithContext(ctx).Save(&h).Error; err != nil {
		return nil, store.Classify(err, "save holding")
	}
	return &h, nil
}
