package idempotency

import (
	"context"
	"testing"

	"github.com/ksred/order-core/internal/testutil"
	"pgregory.net/rapid"
)

// Reserving the same key any number of times, with any sequence of
// candidate order ids, always resolves to the order id the first
// reservation picked.
func TestProperty_ReserveIsStableAcrossRepeatedCalls(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db := testutil.NewTestDB(t)
		r := NewRegistry()
		ctx := context.Background()

		key := rapid.StringMatching(`[a-zA-Z0-9_-]{1,32}`).Draw(t, "key")
		candidates := rapid.SliceOfN(rapid.StringMatching(`order-[a-z0-9]{1,12}`), 1, 10).Draw(t, "candidates")

		outcome, firstOrderID, err := r.Reserve(ctx, db, key, candidates[0])
		if err != nil {
			t.Fatalf("first Reserve failed: %v", err)
		}
		if outcome != Created {
			t.Fatalf("first Reserve for a fresh key returned %v, want Created", outcome)
		}

		for _, candidate := range candidates[1:] {
			outcome, orderID, err := r.Reserve(ctx, db, key, candidate)
			if err != nil {
				t.Fatalf("subsequent Reserve failed: %v", err)
			}
			if outcome != Existing {
				t.Fatalf("subsequent Reserve for key %q returned %v, want Existing", key, outcome)
			}
			if orderID != firstOrderID {
				t.Fatalf("subsequent Reserve for key %q returned order %q, want %q", key, orderID, firstOrderID)
			}
		}
	})
}
