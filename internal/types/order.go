// Package types holds the entities the core reads and writes: Order,
// Trade, Holding, the read-only Investor/Asset views, and the append-only
// OrderStateLog and IdempotencyRecord records. GORM tags are attached
// directly to the domain struct rather than kept in a parallel schema
// definition.
package types

import (
	"time"

	"github.com/ksred/order-core/internal/decimalx"
	"gorm.io/gorm"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is a position in the order lifecycle state machine.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusValidating Status = "VALIDATING"
	StatusValidated  Status = "VALIDATED"
	StatusExecuting  Status = "EXECUTING"
	StatusFilled     Status = "FILLED"
	StatusSettled    Status = "SETTLED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether an order in this status can never transition
// again.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusSettled, StatusCancelled:
		return true
	default:
		return false
	}
}

// Order is the unit of work flowing through the engine.
type Order struct {
	gorm.Model     `json:"-"`
	OrderID        string    `gorm:"uniqueIndex;size:64" json:"order_id"`
	InvestorID     string    `gorm:"index;size:64" json:"investor_id"`
	AssetID        string    `gorm:"index;size:64" json:"asset_id"`
	Side           Side      `gorm:"size:8" json:"side"`
	Quantity       decimalx.Decimal `gorm:"type:text" json:"quantity"`
	Price          decimalx.Decimal `gorm:"type:text" json:"price"`
	HasPrice       bool      `json:"has_price"` // false => market order; Price is meaningless
	Status         Status    `gorm:"size:16;index" json:"status"`
	IdempotencyKey string    `gorm:"index;size:128" json:"idempotency_key,omitempty"`
	RejectReason   string    `json:"reject_reason,omitempty"`
	OrderedAt      time.Time `json:"ordered_at"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
}

// IsMarketOrder reports whether the order carries no limit price.
func (o *Order) IsMarketOrder() bool { return !o.HasPrice }

// Trade is one execution record, created 1:1 with a Filled order.
type Trade struct {
	gorm.Model     `json:"-"`
	TradeID        string    `gorm:"uniqueIndex;size:64" json:"trade_id"`
	OrderID        string    `gorm:"uniqueIndex;size:64" json:"order_id"`
	InvestorID     string    `gorm:"index;size:64" json:"investor_id"`
	AssetID        string    `gorm:"index;size:64" json:"asset_id"`
	Side           Side      `gorm:"size:8" json:"side"`
	Quantity       decimalx.Decimal `gorm:"type:text" json:"quantity"`
	ExecutionPrice decimalx.Decimal `gorm:"type:text" json:"execution_price"`
	TradedAt       time.Time `json:"traded_at"`
}

// Holding is an investor's position in one asset.
type Holding struct {
	gorm.Model  `json:"-"`
	InvestorID  string    `gorm:"uniqueIndex:idx_holding_key;size:64" json:"investor_id"`
	AssetID     string    `gorm:"uniqueIndex:idx_holding_key;size:64" json:"asset_id"`
	Quantity    decimalx.Decimal `gorm:"type:text" json:"quantity"`
	AverageCost decimalx.Decimal `gorm:"type:text" json:"average_cost"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccountStatus is the investor account state the validator checks.
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountClosed    AccountStatus = "CLOSED"
)

// Investor is owned by an external system; the core only ever reads it.
type Investor struct {
	InvestorID    string        `gorm:"primaryKey;size:64" json:"investor_id"`
	AccountStatus AccountStatus `gorm:"size:16" json:"account_status"`
}

// Asset is owned by an external system; the core only ever reads it.
type Asset struct {
	AssetID      string           `gorm:"primaryKey;size:64" json:"asset_id"`
	IsActive     bool             `json:"is_active"`
	CurrentPrice decimalx.Decimal `gorm:"type:text" json:"current_price"`
}

// OrderStateLog is one append-only transition record.
type OrderStateLog struct {
	gorm.Model `json:"-"`
	OrderID    string    `gorm:"index;size:64" json:"order_id"`
	FromStatus Status    `gorm:"size:16" json:"from_status,omitempty"`
	ToStatus   Status    `gorm:"size:16" json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	LoggedBy   string    `gorm:"size:32" json:"logged_by"`
	LoggedAt   time.Time `json:"logged_at"`
}

// IdempotencyRecord maps a client-supplied key to the order it produced.
type IdempotencyRecord struct {
	gorm.Model `json:"-"`
	Key        string    `gorm:"uniqueIndex;size:128" json:"key"`
	OrderID    string    `gorm:"size:64" json:"order_id"`
	CreatedAt2 time.Time `gorm:"column:created_at2" json:"created_at"`
}

// TableName stores idempotency records in the idempotency_keys table.
func (IdempotencyRecord) TableName() string { return "idempotency_keys" }
