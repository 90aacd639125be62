// Package refdata is a read-only stand-in for the external system of
// record for investor accounts and tradable assets. The core never
// writes through it; it only looks up the Investor and Asset rows the
// validator needs. Modeled on trading.Database's plain Get* methods,
// narrowed to read-only.
package refdata

import (
	"context"
	"errors"

	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"gorm.io/gorm"
)

// Repository looks up investor accounts and assets.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetInvestor returns the investor, or a types.NotFound error.
func (r *Repository) GetInvestor(ctx context.Context, investorID string) (*types.Investor, error) {
	var inv types.Investor
	err := r.db.WithContext(ctx).Where("investor_id = ?", investorID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.Wrap(types.KindNotFound, "investor not found: "+investorID, err)
	}
	if err != nil {
		return nil, store.Classify(err, "lookup investor")
	}
	return &inv, nil
}

// GetAsset returns the asset, or a types.NotFound error.
func (r *Repository) GetAsset(ctx context.Context, assetID string) (*types.Asset, error) {
	var a types.Asset
	err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.Wrap(types.KindNotFound, "asset not found: "+assetID, err)
	}
	if err != nil {
		return nil, store.Classify(err, "lookup asset")
	}
	return &a, nil
}

// Seed upserts a batch of investors and assets. Tests call it;
// cmd/server does not, so a server's investor and asset tables hold only
// what is already in its database. The external system of record would
// normally populate these tables out of band.
func (r *Repository) Seed(ctx context.Context, investors []types.Investor, assets []types.Asset) error {
	for _, inv := range investors {
		inv := inv
		if err := r.db.WithContext(ctx).Save(&inv).Error; err != nil {
			return types.Wrap(types.KindFatal, "seed investor", err)
		}
	}
	for _, a := range assets {
		a := a
		if err := r.db.WithContext(ctx).Save(&a).Error; err != nil {
			return types.Wrap(types.KindFatal, "seed asset", err)
		}
	}
	return nil
}
