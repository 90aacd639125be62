package statelog

import (
	"context"
	"testing"

	"github.com/ksred/order-core/internal/testutil"
	"github.com/ksred/order-core/internal/types"
)

func TestAppendAndHistory_FormsAPath(t *testing.T) {
	db := testutil.NewTestDB(t)
	w := NewWriter()
	ctx := context.Background()

	transitions := []struct{ from, to types.Status }{
		{"", types.StatusNew},
		{types.StatusNew, types.StatusValidating},
		{types.StatusValidating, types.StatusValidated},
	}
	for _, tr := range transitions {
		if err := w.Append(ctx, db, "order-1", tr.from, tr.to, "", "engine"); err != nil {
			t.Fatal(err)
		}
	}

	history, err := w.History(ctx, db, "order-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d entries, want 3", len(history))
	}
	if history[0].FromStatus != "" || history[0].ToStatus != types.StatusNew {
		t.Fatalf("first entry should be (null -> New), got (%s -> %s)", history[0].FromStatus, history[0].ToStatus)
	}
	for i := 1; i < len(history); i++ {
		if history[i].FromStatus != history[i-1].ToStatus {
			t.Fatalf("log entries don't form a contiguous path at index %d", i)
		}
	}
}
