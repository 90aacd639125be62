package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/ksred/order-core/internal/eventbus"
	"github.com/ksred/order-core/internal/statelog"
	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/testutil"
	"github.com/ksred/order-core/internal/types"
)

func TestSchedule_SettlesFilledOrderAtDueTime(t *testing.T) {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	bus := eventbus.New()
	defer bus.Close()

	now := time.Now()
	order := types.Order{OrderID: "o1", InvestorID: "I1", AssetID: "A10", Status: types.StatusFilled, ExecutedAt: &now}
	if err := db.Create(&order).Error; err != nil {
		t.Fatal(err)
	}

	sched := New(st, statelog.NewWriter(), bus, 50*time.Millisecond)
	sched.Start()
	defer sched.Stop()

	sched.Schedule("o1", now.Add(50*time.Millisecond))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var got types.Order
		if err := db.Where("order_id = ?", "o1").First(&got).Error; err != nil {
			t.Fatal(err)
		}
		if got.Status == types.StatusSettled {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("order was not settled within the deadline")
}

func TestSettle_NoOpIfOrderNoLongerFilled(t *testing.T) {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	bus := eventbus.New()
	defer bus.Close()

	order := types.Order{OrderID: "o2", InvestorID: "I1", AssetID: "A10", Status: types.StatusCancelled}
	if err := db.Create(&order).Error; err != nil {
		t.Fatal(err)
	}

	sched := New(st, statelog.NewWriter(), bus, time.Second)
	sched.settle("o2")

	var got types.Order
	if err := db.Where("order_id = ?", "o2").First(&got).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusCancelled {
		t.Fatalf("settle mutated a non-Filled order: %s", got.Status)
	}
}

func TestRestore_ReconstructsPendingJobs(t *testing.T) {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	bus := eventbus.New()
	defer bus.Close()

	executedAt := time.Now().Add(-time.Hour)
	order := types.Order{OrderID: "o3", InvestorID: "I1", AssetID: "A10", Status: types.StatusFilled, ExecutedAt: &executedAt}
	if err := db.Create(&order).Error; err != nil {
		t.Fatal(err)
	}

	sched := New(st, statelog.NewWriter(), bus, 10*time.Millisecond)
	if err := sched.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}

	sched.mu.Lock()
	_, tracked := sched.index["o3"]
	sched.mu.Unlock()
	if !tracked {
		t.Fatal("Restore did not reconstruct the pending job for a Filled order without settledAt")
	}
}
