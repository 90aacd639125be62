// Package validator runs the short-circuit chain of checks an order must
// pass before it leaves Validating: investor account state, asset
// tradability, quantity/price sanity, holdings sufficiency for sells, and
// market-price availability for market orders. Grounded on
// clearing.Service.ClearTrade's step-by-step log.With()...Logger()
// narration style, with the math swapped for decimalx and the
// margin/netting steps dropped since this chain validates order
// admission, not trade settlement risk.
package validator

import (
	"context"
	"fmt"

	"github.com/ksred/order-core/internal/decimalx"
	"github.com/ksred/order-core/internal/types"
	"github.com/rs/zerolog/log"
)

// Validate runs every check in order, short-circuiting on the first
// failure and returning a types.ValidationFailed or
// types.InsufficientHoldings error carrying the exact client-facing
// reason text.
func Validate(ctx context.Context, order *types.Order, investor *types.Investor, asset *types.Asset, holding *types.Holding) error {
	logger := log.With().
		Str("order_id", order.OrderID).
		Str("investor_id", order.InvestorID).
		Str("asset_id", order.AssetID).
		Logger()

	if investor == nil || investor.AccountStatus == "" || investor.AccountStatus == "UNKNOWN" {
		logger.Info().Msg("rejecting order: investor not found")
		return types.New(types.KindValidationFailed, "Investor not found")
	}
	if investor.AccountStatus != types.AccountActive {
		logger.Info().Str("account_status", string(investor.AccountStatus)).Msg("rejecting order: investor account not active")
		return types.New(types.KindValidationFailed, "Account is "+string(investor.AccountStatus))
	}

	if asset == nil || !asset.IsActive {
		logger.Info().Msg("rejecting order: asset not tradable")
		return types.New(types.KindValidationFailed, "Asset is not available for trading")
	}

	if order.Quantity.Sign() <= 0 {
		logger.Info().Str("quantity", order.Quantity.String()).Msg("rejecting order: non-positive quantity")
		return types.New(types.KindValidationFailed, "Quantity must be positive")
	}

	if order.HasPrice && order.Price.Sign() <= 0 {
		logger.Info().Str("price", order.Price.String()).Msg("rejecting order: non-positive limit price")
		return types.New(types.KindValidationFailed, "Price must be positive")
	}

	if order.Side == types.SideSell {
		var held decimalx.Decimal
		if holding != nil {
			held = holding.Quantity
		}
		if held.LessThan(order.Quantity) {
			reason := fmt.Sprintf("Insufficient holdings. Available: %s, Requested: %s", held.String(), order.Quantity.String())
			logger.Info().Str("held", held.String()).Str("requested", order.Quantity.String()).Msg("rejecting order: insufficient holdings")
			return types.New(types.KindInsufficientHoldings, reason)
		}
	}

	if !order.HasPrice {
		if asset.CurrentPrice.Sign() <= 0 {
			logger.Info().Msg("rejecting order: invalid market price for asset")
			return types.New(types.KindValidationFailed, "Invalid market price for asset")
		}
	}

	logger.Debug().Msg("order passed validation")
	return nil
}
