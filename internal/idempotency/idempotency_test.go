package idempotency

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/ksred/order-core/internal/testutil"
)

func TestReserve_NoKeyAlwaysCreated(t *testing.T) {
	db := testutil.NewTestDB(t)
	r := NewRegistry()

	outcome, orderID, err := r.Reserve(context.Background(), db, "", "order-1")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Created || orderID != "order-1" {
		t.Fatalf("got %v/%s, want Created/order-1", outcome, orderID)
	}
}

func TestReserve_FirstCallCreatesSecondReturnsExisting(t *testing.T) {
	db := testutil.NewTestDB(t)
	r := NewRegistry()
	ctx := context.Background()
	key := uuid.New().String()

	outcome1, id1, err := r.Reserve(ctx, db, key, "order-1")
	if err != nil {
		t.Fatal(err)
	}
	if outcome1 != Created {
		t.Fatalf("expected Created, got %v", outcome1)
	}

	outcome2, id2, err := r.Reserve(ctx, db, key, "order-2")
	if err != nil {
		t.Fatal(err)
	}
	if outcome2 != Existing {
		t.Fatalf("expected Existing, got %v", outcome2)
	}
	if id2 != id1 {
		t.Fatalf("second reservation returned a different order id: %s vs %s", id2, id1)
	}
}
