package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/ksred/order-core/internal/decimalx"
	"github.com/ksred/order-core/internal/types"
)

func activeInvestor() *types.Investor {
	return &types.Investor{InvestorID: "I1", AccountStatus: types.AccountActive}
}

func activeAsset() *types.Asset {
	return &types.Asset{AssetID: "A10", IsActive: true, CurrentPrice: decimalx.MustParse("50.00")}
}

func TestValidate_RejectsInactiveInvestor(t *testing.T) {
	investor := &types.Investor{InvestorID: "I1", AccountStatus: types.AccountSuspended}
	order := &types.Order{OrderID: "o1", Side: types.SideBuy, Quantity: decimalx.MustParse("1"), HasPrice: true, Price: decimalx.MustParse("1")}

	err := Validate(context.Background(), order, investor, activeAsset(), nil)
	if err == nil {
		t.Fatal("expected rejection")
	}
	var terr *types.Error
	if !errors.As(err, &terr) || terr.Message != "Account is SUSPENDED" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsInactiveAsset(t *testing.T) {
	asset := &types.Asset{AssetID: "A10", IsActive: false}
	order := &types.Order{OrderID: "o1", Side: types.SideBuy, Quantity: decimalx.MustParse("1"), HasPrice: true, Price: decimalx.MustParse("1")}

	err := Validate(context.Background(), order, activeInvestor(), asset, nil)
	var terr *types.Error
	if !errors.As(err, &terr) || terr.Message != "Asset is not available for trading" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InsufficientHoldingsReasonFormat(t *testing.T) {
	holding := &types.Holding{Quantity: decimalx.MustParse("1")}
	order := &types.Order{OrderID: "o1", Side: types.SideSell, Quantity: decimalx.MustParse("2")}

	err := Validate(context.Background(), order, activeInvestor(), activeAsset(), holding)
	var terr *types.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected types.Error, got %v", err)
	}
	want := "Insufficient holdings. Available: 1, Requested: 2"
	if terr.Message != want {
		t.Fatalf("got %q, want %q", terr.Message, want)
	}
	if terr.Kind != types.KindInsufficientHoldings {
		t.Fatalf("got kind %s, want InsufficientHoldings", terr.Kind)
	}
}

func TestValidate_MarketOrderRequiresCurrentPrice(t *testing.T) {
	asset := &types.Asset{AssetID: "A10", IsActive: true, CurrentPrice: decimalx.Zero()}
	order := &types.Order{OrderID: "o1", Side: types.SideBuy, Quantity: decimalx.MustParse("1"), HasPrice: false}

	err := Validate(context.Background(), order, activeInvestor(), asset, nil)
	var terr *types.Error
	if !errors.As(err, &terr) || terr.Message != "Invalid market price for asset" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Passes(t *testing.T) {
	order := &types.Order{OrderID: "o1", Side: types.SideBuy, Quantity: decimalx.MustParse("2"), HasPrice: false}
	if err := Validate(context.Background(), order, activeInvestor(), activeAsset(), nil); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}
