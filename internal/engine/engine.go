// Package engine owns the order lifecycle state machine: CreateOrder,
// the background workflow that drives a New order through validation and
// execution to Filled, and CancelOrder. It orchestrates the idempotency
// registry, validator, holdings mutator and state log, and hands
// completed fills to the settlement scheduler. Order processing runs on
// an explicit work queue and fixed worker pool rather than a
// fire-and-forget goroutine per submission, so load is bounded and
// ordering per queue slot stays deterministic.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/order-core/internal/decimalx"
	"github.com/ksred/order-core/internal/eventbus"
	"github.com/ksred/order-core/internal/holdings"
	"github.com/ksred/order-core/internal/idempotency"
	"github.com/ksred/order-core/internal/refdata"
	"github.com/ksred/order-core/internal/statelog"
	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Scheduler is the subset of settlement.Scheduler the engine depends on.
// Kept narrow so engine never imports settlement's durability machinery.
type Scheduler interface {
	Schedule(orderID string, dueAt time.Time)
}

// Config controls the worker pool and retry policy. All fields have
// sane defaults applied by New if left zero.
type Config struct {
	WorkerPoolSize     int
	QueueSize          int
	ProcessingDeadline time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	SettlementDelay    time.Duration
}

func (c *Config) applyDefaults() {
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.ProcessingDeadline <= 0 {
		c.ProcessingDeadline = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 50 * time.Millisecond
	}
	if c.SettlementDelay <= 0 {
		c.SettlementDelay = 10 * time.Second
	}
}

// Engine drives order creation, processing and cancellation.
type Engine struct {
	cfg Config

	store    *store.Store
	refdata  *refdata.Repository
	idemp    *idempotency.Registry
	holdings *holdings.Mutator
	slog     *statelog.Writer
	bus      *eventbus.Bus
	sched    Scheduler

	orderLocks    *store.KeyedLock
	positionLocks *store.KeyedLock

	queue chan string
	stop  chan struct{}
}

// New constructs an Engine. Call Start to launch the worker pool.
func New(cfg Config, st *store.Store, rd *refdata.Repository, idemp *idempotency.Registry, hm *holdings.Mutator, sl *statelog.Writer, bus *eventbus.Bus, sched Scheduler) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:           cfg,
		store:         st,
		refdata:       rd,
		idemp:         idemp,
		holdings:      hm,
		slog:          sl,
		bus:           bus,
		sched:         sched,
		orderLocks:    store.NewKeyedLock(),
		positionLocks: store.NewKeyedLock(),
		queue:         make(chan string, cfg.QueueSize),
		stop:          make(chan struct{}),
	}
}

// Start launches the fixed-size worker pool. It does not block.
func (e *Engine) Start() {
	for i := 0; i < e.cfg.WorkerPoolSize; i++ {
		go e.worker(i)
	}
}

// Stop signals every worker to exit after its current order, if any.
func (e *Engine) Stop() {
	close(e.stop)
}

func (e *Engine) worker(id int) {
	logger := log.With().Int("worker", id).Logger()
	for {
		select {
		case <-e.stop:
			return
		case orderID := <-e.queue:
			e.processWithRetry(orderID)
			logger.Debug().Str("order_id", orderID).Msg("engine: finished processing")
		}
	}
}

// CreateRequest is the engine-level order submission, already parsed and
// range-checked by the transport adapter.
type CreateRequest struct {
	InvestorID     string
	AssetID        string
	Side           types.Side
	Quantity       decimalx.Decimal
	Price          decimalx.Decimal
	HasPrice       bool
	IdempotencyKey string
}

// CreateOrder consults the idempotency registry and, for a fresh
// submission, persists a New order and enqueues it for processing. It
// returns once the New record is durably committed; workflow progression
// happens asynchronously on the worker pool.
func (e *Engine) CreateOrder(ctx context.Context, req CreateRequest) (*types.Order, error) {
	candidateID := uuid.New().String()
	order := &types.Order{
		OrderID:        candidateID,
		InvestorID:     req.InvestorID,
		AssetID:        req.AssetID,
		Side:           req.Side,
		Quantity:       req.Quantity,
		Price:          req.Price,
		HasPrice:       req.HasPrice,
		Status:         types.StatusNew,
		IdempotencyKey: req.IdempotencyKey,
		OrderedAt:      time.Now(),
	}

	var resultID string
	var created bool

	err := e.store.WithTx(ctx, func(tx *gorm.DB) error {
		outcome, orderID, err := e.idemp.Reserve(ctx, tx, req.IdempotencyKey, candidateID)
		if err != nil {
			return err
		}
		resultID = orderID
		if outcome == idempotency.Existing {
			created = false
			return nil
		}
		created = true
		if err := tx.WithContext(ctx).Create(order).Error; err != nil {
			return store.Classify(err, "create order")
		}
		return e.slog.Append(ctx, tx, order.OrderID, "", types.StatusNew, "", "engine")
	})
	if err != nil {
		return nil, err
	}

	if !created {
		existing, err := e.GetOrder(ctx, resultID)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	e.bus.Publish(eventbus.Event{OrderID: order.OrderID, InvestorID: order.InvestorID, FromStatus: "", ToStatus: string(types.StatusNew), Order: order})
	e.enqueue(order.OrderID)
	return order, nil
}

func (e *Engine) enqueue(orderID string) {
	select {
	case e.queue <- orderID:
	default:
		// Queue saturated: log and retry with a short blocking send rather
		// than silently dropping an accepted order.
		log.Warn().Str("order_id", orderID).Msg("engine: processing queue full, blocking")
		e.queue <- orderID
	}
}

// GetOrder reads an order by id.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	var order types.Order
	err := e.store.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.Wrap(types.KindNotFound, "order not found: "+orderID, err)
	}
	if err != nil {
		return nil, store.Classify(err, "get order")
	}
	return &order, nil
}

// ListOrdersForInvestor returns an investor's orders, newest first,
// optionally filtered to orders placed at or after fromDate.
func (e *Engine) ListOrdersForInvestor(ctx context.Context, investorID string, fromDate *time.Time) ([]types.Order, error) {
	q := e.store.DB.WithContext(ctx).Where("investor_id = ?", investorID)
	if fromDate != nil {
		q = q.Where("ordered_at >= ?", *fromDate)
	}
	var orders []types.Order
	if err := q.Order("ordered_at desc").Find(&orders).Error; err != nil {
		return nil, store.Classify(err, "list orders")
	}
	return orders, nil
}

// CancelOrder transitions orderID to Cancelled if it is currently in
// {New, Validated}. It locks the order so it cannot race a workflow
// worker that is simultaneously progressing the same order.
func (e *Engine) CancelOrder(ctx context.Context, orderID, reason string) error {
	unlock := e.orderLocks.Lock(orderID)
	defer unlock()

	var order types.Order
	var from types.Status

	err := e.store.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.Wrap(types.KindNotFound, "order not found: "+orderID, err)
			}
			return store.Classify(err, "load order for cancel")
		}
		if order.Status != types.StatusNew && order.Status != types.StatusValidated {
			return types.New(types.KindInvalidState, fmt.Sprintf("cannot cancel order in status %s", order.Status))
		}
		from = order.Status
		order.Status = types.StatusCancelled
		if err := tx.WithContext(ctx).Save(&order).Error; err != nil {
			return store.Classify(err, "save cancelled order")
		}
		return e.slog.Append(ctx, tx, orderID, from, types.StatusCancelled, reason, "engine")
	})
	if err != nil {
		return err
	}

	e.bus.Publish(eventbus.Event{OrderID: orderID, InvestorID: order.InvestorID, FromStatus: string(from), ToStatus: string(types.StatusCancelled), Reason: reason, Order: &order})
	return nil
}
