package holdings

import (
	"context"
	"testing"

	"github.com/ksred/order-core/internal/decimalx"
	"github.com/ksred/order-core/internal/testutil"
	"github.com/ksred/order-core/internal/types"
)

func TestApplyFill_BuyCreatesHolding(t *testing.T) {
	db := testutil.NewTestDB(t)
	m := NewMutator()

	h, err := m.ApplyFill(context.Background(), db, "I1", "A10", types.SideBuy, decimalx.MustParse("2"), decimalx.MustParse("50.00"))
	if err != nil {
		t.Fatal(err)
	}
	if h.Quantity.Cmp(decimalx.MustParse("2")) != 0 {
		t.Fatalf("got qty %s, want 2", h.Quantity)
	}
	if h.AverageCost.Cmp(decimalx.MustParse("50.00")) != 0 {
		t.Fatalf("got avg %s, want 50.00", h.AverageCost)
	}
}

func TestApplyFill_WeightedAverageCost(t *testing.T) {
	db := testutil.NewTestDB(t)
	m := NewMutator()
	ctx := context.Background()

	if _, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideBuy, decimalx.MustParse("2"), decimalx.MustParse("50.00")); err != nil {
		t.Fatal(err)
	}
	h, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideBuy, decimalx.MustParse("2"), decimalx.MustParse("60.00"))
	if err != nil {
		t.Fatal(err)
	}

	if h.Quantity.Cmp(decimalx.MustParse("4")) != 0 {
		t.Fatalf("got qty %s, want 4", h.Quantity)
	}
	if h.AverageCost.Cmp(decimalx.MustParse("55")) != 0 {
		t.Fatalf("got avg %s, want 55", h.AverageCost)
	}
}

func TestApplyFill_SellDecrementsWithoutChangingAverageCost(t *testing.T) {
	db := testutil.NewTestDB(t)
	m := NewMutator()
	ctx := context.Background()

	if _, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideBuy, decimalx.MustParse("4"), decimalx.MustParse("50.00")); err != nil {
		t.Fatal(err)
	}
	h, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideSell, decimalx.MustParse("1"), decimalx.MustParse("999"))
	if err != nil {
		t.Fatal(err)
	}
	if h.Quantity.Cmp(decimalx.MustParse("3")) != 0 {
		t.Fatalf("got qty %s, want 3", h.Quantity)
	}
	if h.AverageCost.Cmp(decimalx.MustParse("50.00")) != 0 {
		t.Fatalf("average cost should be unchanged by a sell, got %s", h.AverageCost)
	}
}

func TestApplyFill_SellMoreThanHeldFails(t *testing.T) {
	db := testutil.NewTestDB(t)
	m := NewMutator()
	ctx := context.Background()

	if _, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideBuy, decimalx.MustParse("1"), decimalx.MustParse("50")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideSell, decimalx.MustParse("2"), decimalx.MustParse("50")); err == nil {
		t.Fatal("expected insufficient holdings error")
	}
}

func TestApplyFill_NeverNegative(t *testing.T) {
	db := testutil.NewTestDB(t)
	m := NewMutator()
	ctx := context.Background()

	if _, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideBuy, decimalx.MustParse("5"), decimalx.MustParse("10")); err != nil {
		t.Fatal(err)
	}
	h, err := m.ApplyFill(ctx, db, "I1", "A10", types.SideSell, decimalx.MustParse("5"), decimalx.MustParse("10"))
	if err != nil {
		t.Fatal(err)
	}
	if h.Quantity.Sign() < 0 {
		t.Fatalf("holding went negative: %s", h.Quantity)
	}
}
