package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/order-core/internal/eventbus"
	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"github.com/ksred/order-core/internal/validator"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// processWithRetry drives one order's workflow under an outer processing
// deadline, retrying types.Transient failures with bounded exponential
// backoff before giving up and rejecting the order.
func (e *Engine) processWithRetry(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ProcessingDeadline)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				e.rejectSystemError(orderID, "timeout")
				return
			}
		}

		lastErr = e.processOrder(ctx, orderID)
		if lastErr == nil {
			return
		}
		if !errors.Is(lastErr, types.Transient) {
			break
		}
		log.Warn().Str("order_id", orderID).Int("attempt", attempt).Err(lastErr).Msg("engine: transient failure, retrying")
	}

	if lastErr == nil {
		return
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.rejectSystemError(orderID, "timeout")
		return
	}
	if aborted(lastErr) {
		// Cancellation won the race; nothing further to do.
		return
	}
	e.rejectSystemError(orderID, lastErr.Error())
}

// errAborted marks a workflow step that found the order already
// cancelled out from under it, which is expected and not itself a
// failure worth rejecting the order for (it's already terminal).
var errAborted = errors.New("engine: order already in a terminal state")

func aborted(err error) bool { return errors.Is(err, errAborted) }

// processOrder advances orderID one full hop: New -> Validating ->
// {Rejected | Validated} -> Executing -> {Rejected | Filled}. Each
// transition is its own transaction so a crash mid-workflow leaves the
// order in a well-defined, resumable status (the engine does not resume
// mid-hop automatically; an order stuck in Validating/Executing after a
// crash is picked up again only if re-enqueued, which is an accepted gap
// for this scope).
func (e *Engine) processOrder(ctx context.Context, orderID string) error {
	unlock := e.orderLocks.Lock(orderID)
	defer unlock()

	order, err := e.transition(ctx, orderID, []types.Status{types.StatusNew}, types.StatusValidating, "", nil)
	if err != nil {
		return err
	}

	investor, asset, holding, err := e.loadValidationContext(ctx, order)
	if err != nil {
		return err
	}

	if verr := validator.Validate(ctx, order, investor, asset, holding); verr != nil {
		var terr *types.Error
		reason := verr.Error()
		if errors.As(verr, &terr) {
			reason = terr.Message
		}
		_, err := e.transition(ctx, orderID, []types.Status{types.StatusValidating}, types.StatusRejected, reason, nil)
		return err
	}

	if _, err := e.transition(ctx, orderID, []types.Status{types.StatusValidating}, types.StatusValidated, "", nil); err != nil {
		return err
	}
	order, err = e.transition(ctx, orderID, []types.Status{types.StatusValidated}, types.StatusExecuting, "", nil)
	if err != nil {
		return err
	}

	if err := e.execute(ctx, order, asset); err != nil {
		var terr *types.Error
		reason := err.Error()
		if errors.As(err, &terr) {
			reason = "System error: " + terr.Message
		}
		_, rerr := e.transition(ctx, orderID, []types.Status{types.StatusExecuting}, types.StatusRejected, reason, nil)
		if rerr != nil {
			return rerr
		}
		return nil
	}

	return nil
}

func (e *Engine) loadValidationContext(ctx context.Context, order *types.Order) (*types.Investor, *types.Asset, *types.Holding, error) {
	investor, err := e.refdata.GetInvestor(ctx, order.InvestorID)
	if err != nil && types.KindOf(err) != types.KindNotFound {
		return nil, nil, nil, err
	}
	if investor == nil {
		investor = &types.Investor{InvestorID: order.InvestorID, AccountStatus: "UNKNOWN"}
	}
	asset, err := e.refdata.GetAsset(ctx, order.AssetID)
	if err != nil && types.KindOf(err) != types.KindNotFound {
		return nil, nil, nil, err
	}
	if asset == nil {
		asset = &types.Asset{AssetID: order.AssetID, IsActive: false}
	}

	var holding types.Holding
	err = e.store.DB.WithContext(ctx).Where("investor_id = ? AND asset_id = ?", order.InvestorID, order.AssetID).First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return investor, asset, nil, nil
	}
	if err != nil {
		return nil, nil, nil, store.Classify(err, "load holding")
	}
	return investor, asset, &holding, nil
}

// execute creates the Trade and mutates Holdings inside one transaction,
// then marks the order Filled. Per-(investorId,assetId) serialization is
// enforced by positionLocks so two concurrent sells against the same
// position never both read the pre-decrement quantity.
func (e *Engine) execute(ctx context.Context, order *types.Order, asset *types.Asset) error {
	posKey := order.InvestorID + ":" + order.AssetID
	unlock := e.positionLocks.Lock(posKey)
	defer unlock()

	executionPrice := order.Price
	if !order.HasPrice {
		if asset.CurrentPrice.Sign() <= 0 {
			return types.New(types.KindValidationFailed, "invalid market price for asset")
		}
		executionPrice = asset.CurrentPrice
	}

	now := time.Now()

	var fresh types.Order
	err := e.store.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("order_id = ?", order.OrderID).First(&fresh).Error; err != nil {
			return store.Classify(err, "reload order for execution")
		}
		if fresh.Status == types.StatusCancelled {
			return errAborted
		}
		if fresh.Status != types.StatusExecuting {
			return errAborted
		}

		if _, err := e.holdings.ApplyFill(ctx, tx, order.InvestorID, order.AssetID, order.Side, order.Quantity, executionPrice); err != nil {
			return err
		}

		trade := types.Trade{
			TradeID:        uuid.New().String(),
			OrderID:        order.OrderID,
			InvestorID:     order.InvestorID,
			AssetID:        order.AssetID,
			Side:           order.Side,
			Quantity:       order.Quantity,
			ExecutionPrice: executionPrice,
			TradedAt:       now,
		}
		if err := tx.WithContext(ctx).Create(&trade).Error; err != nil {
			return store.Classify(err, "create trade")
		}

		fresh.Status = types.StatusFilled
		fresh.ExecutedAt = &now
		if err := tx.WithContext(ctx).Save(&fresh).Error; err != nil {
			return store.Classify(err, "save filled order")
		}
		return e.slog.Append(ctx, tx, order.OrderID, types.StatusExecuting, types.StatusFilled, "", "engine")
	})
	if err != nil {
		if aborted(err) {
			return nil
		}
		return err
	}

	e.bus.Publish(eventbus.Event{OrderID: order.OrderID, InvestorID: order.InvestorID, FromStatus: string(types.StatusExecuting), ToStatus: string(types.StatusFilled), Order: &fresh})
	e.sched.Schedule(order.OrderID, now.Add(e.settlementDelay()))
	return nil
}

func (e *Engine) settlementDelay() time.Duration {
	// The engine computes dueAt from its own configured delay, which
	// applyDefaults sets to 10s when left zero; Schedule uses the dueAt it
	// is given as-is.
	return e.cfg.SettlementDelay
}

// transition loads orderID, verifies its current status is one of from,
// applies to, appends a state log entry and publishes the event, all in
// one transaction. If the order is already terminal or cancelled out
// from under the workflow, it returns errAborted instead of an error the
// retry loop would act on.
func (e *Engine) transition(ctx context.Context, orderID string, from []types.Status, to types.Status, reason string, mutate func(tx *gorm.DB, order *types.Order) error) (*types.Order, error) {
	var order types.Order
	var prev types.Status

	err := e.store.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
			return store.Classify(err, "load order for transition")
		}
		if order.Status == types.StatusCancelled {
			return errAborted
		}
		allowed := false
		for _, s := range from {
			if order.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("engine: order %s not in expected status (have %s, want %v): %w", orderID, order.Status, from, errAborted)
		}
		prev = order.Status
		order.Status = to
		if to == types.StatusRejected {
			order.RejectReason = reason
		}
		if mutate != nil {
			if err := mutate(tx, &order); err != nil {
				return err
			}
		}
		if err := tx.WithContext(ctx).Save(&order).Error; err != nil {
			return store.Classify(err, "save order transition")
		}
		return e.slog.Append(ctx, tx, orderID, prev, to, reason, "engine")
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(eventbus.Event{OrderID: orderID, InvestorID: order.InvestorID, FromStatus: string(prev), ToStatus: string(to), Reason: reason, Order: &order})
	return &order, nil
}

func (e *Engine) rejectSystemError(orderID, detail string) {
	reason := "System error: " + detail
	_, err := e.transition(context.Background(), orderID, []types.Status{
		types.StatusNew, types.StatusValidating, types.StatusValidated, types.StatusExecuting,
	}, types.StatusRejected, reason, nil)
	if err != nil && !aborted(err) {
		log.Error().Str("order_id", orderID).Err(err).Msg("engine: failed to reject order after exhausting retries")
	}
}
