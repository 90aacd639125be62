package holdings

import (
	"context"
	"testing"

	"github.com/ksred/order-core/internal/decimalx"
	"github.com/ksred/order-core/internal/testutil"
	"github.com/ksred/order-core/internal/types"
	"pgregory.net/rapid"
)

// A random sequence of fills, each sell capped to the quantity already
// on hand, must never leave the holding at a negative quantity or a
// negative average cost.
func TestProperty_FillSequenceNeverGoesNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db := testutil.NewTestDB(t)
		m := NewMutator()
		ctx := context.Background()

		numFills := rapid.IntRange(1, 20).Draw(t, "numFills")
		held := decimalx.Zero()

		for i := 0; i < numFills; i++ {
			qtyRaw := rapid.Int64Range(1, 1000).Draw(t, "qty")
			priceRaw := rapid.Int64Range(1, 100000).Draw(t, "price")
			qty := decimalx.New(qtyRaw, -2)
			price := decimalx.New(priceRaw, -2)

			side := types.SideBuy
			if held.Sign() > 0 && rapid.Bool().Draw(t, "isSell") {
				side = types.SideSell
				if qty.GreaterThan(held) {
					qty = held
				}
			}
			if side == types.SideSell && qty.IsZero() {
				continue
			}

			tx := db.Begin()
			h, err := m.ApplyFill(ctx, tx, "inv-1", "asset-1", side, qty, price)
			if err != nil {
				tx.Rollback()
				t.Fatalf("ApplyFill failed: %v", err)
			}
			if err := tx.Commit().Error; err != nil {
				t.Fatalf("commit failed: %v", err)
			}

			if h.Quantity.Sign() < 0 {
				t.Fatalf("holding quantity went negative: %s", h.Quantity)
			}
			if h.AverageCost.Sign() < 0 {
				t.Fatalf("average cost went negative: %s", h.AverageCost)
			}

			held = h.Quantity
		}
	})
}
