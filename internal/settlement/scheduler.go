// Package settlement drives the deferred Filled -> Settled transition.
// Pending jobs live in an in-memory btree ordered by due time, so the
// next job to fire is always the tree's minimum; durability comes from
// reconstructing that tree at startup by scanning Filled orders without a
// settledAt, not from persisting the tree itself. Grounded on
// miniexchange's OrderBook (a BTreeG ordered index with a secondary map
// for O(log n) removal by key), replacing price ordering with due-time
// ordering, and on settlement/processor.go's ticker-driven dispatch loop,
// replaced here with a single-job timer per the durability design note
// instead of a poll-everything ticker.
package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/ksred/order-core/internal/eventbus"
	"github.com/ksred/order-core/internal/statelog"
	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// job is one pending Filled -> Settled transition.
type job struct {
	OrderID string
	DueAt   time.Time
}

func jobLess(a, b job) bool {
	if !a.DueAt.Equal(b.DueAt) {
		return a.DueAt.Before(b.DueAt)
	}
	return a.OrderID < b.OrderID
}

const treeDegree = 32

// Scheduler maintains pending settlements and fires each one's
// transaction at its due time.
type Scheduler struct {
	store *store.Store
	slog  *statelog.Writer
	bus   *eventbus.Bus
	delay time.Duration

	mu    sync.Mutex
	tree  *btree.BTreeG[job]
	index map[string]job

	wake chan struct{}
	stop chan struct{}
}

// New constructs a Scheduler. Call Restore before Start to reconstruct
// pending jobs from durable state after a restart.
func New(st *store.Store, sl *statelog.Writer, bus *eventbus.Bus, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = 10 * time.Second
	}
	return &Scheduler{
		store: st,
		slog:  sl,
		bus:   bus,
		delay: delay,
		tree:  btree.NewG(treeDegree, jobLess),
		index: make(map[string]job),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
}

// Schedule places a deferred Filled -> Settled job for orderID at dueAt.
// Safe to call concurrently from multiple engine workers.
func (s *Scheduler) Schedule(orderID string, dueAt time.Time) {
	s.mu.Lock()
	if old, ok := s.index[orderID]; ok {
		s.tree.Delete(old)
	}
	j := job{OrderID: orderID, DueAt: dueAt}
	s.tree.ReplaceOrInsert(j)
	s.index[orderID] = j
	s.mu.Unlock()

	s.nudge()
}

// Restore reconstructs pending jobs by scanning orders in Filled without
// a settledAt. This is the scheduler's durability contract: the btree is
// process-local and disposable, but startup always rebuilds it from the
// database.
func (s *Scheduler) Restore(ctx context.Context) error {
	var orders []types.Order
	err := s.store.DB.WithContext(ctx).
		Where("status = ? AND settled_at IS NULL", types.StatusFilled).
		Find(&orders).Error
	if err != nil {
		return types.Wrap(types.KindFatal, "restore settlement jobs", err)
	}

	for _, o := range orders {
		dueAt := time.Now()
		if o.ExecutedAt != nil {
			dueAt = o.ExecutedAt.Add(s.delay)
		}
		s.Schedule(o.OrderID, dueAt)
	}
	log.Info().Int("count", len(orders)).Msg("settlement: restored pending jobs")
	return nil
}

// Start launches the dispatcher goroutine. It does not block.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts the dispatcher. Pending jobs remain in memory and would need
// Restore on the next process to be picked up again.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	for {
		delay, hasJob := s.nextDelay()
		var timer <-chan time.Time
		if hasJob {
			timer = time.After(delay)
		}

		select {
		case <-s.stop:
			return
		case <-s.wake:
			continue
		case <-timer:
			s.fireDue()
		}
	}
}

func (s *Scheduler) nextDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	min, ok := s.tree.Min()
	if !ok {
		return 0, false
	}
	d := time.Until(min.DueAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// fireDue pops and settles every job whose due time has arrived.
func (s *Scheduler) fireDue() {
	for {
		s.mu.Lock()
		min, ok := s.tree.Min()
		if !ok || min.DueAt.After(time.Now()) {
			s.mu.Unlock()
			return
		}
		s.tree.Delete(min)
		delete(s.index, min.OrderID)
		s.mu.Unlock()

		s.settle(min.OrderID)
	}
}

// settle opens a transaction, re-reads the order, and transitions it to
// Settled iff it is still Filled. Any other status is a silent no-op:
// the order was mutated by something outside the settlement job's
// purview between scheduling and firing.
func (s *Scheduler) settle(orderID string) {
	var order types.Order
	var settled bool

	err := s.store.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return store.Classify(err, "reload order for settlement")
		}
		if order.Status != types.StatusFilled {
			return nil
		}
		now := time.Now()
		order.Status = types.StatusSettled
		order.SettledAt = &now
		if err := tx.Save(&order).Error; err != nil {
			return store.Classify(err, "save settled order")
		}
		settled = true
		return s.slog.Append(context.Background(), tx, orderID, types.StatusFilled, types.StatusSettled, "", "settlement")
	})
	if err != nil {
		log.Error().Str("order_id", orderID).Err(err).Msg("settlement: failed to settle order")
		return
	}
	if !settled {
		return
	}

	s.bus.Publish(eventbus.Event{OrderID: orderID, InvestorID: order.InvestorID, FromStatus: string(types.StatusFilled), ToStatus: string(types.StatusSettled), Order: &order})
}
