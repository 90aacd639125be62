// Package httpapi is the HTTP transport adapter for the engine: the
// REST surface that wraps order submission, lookup and cancellation, plus
// read-only asset/holding queries. Handlers follow a consistent
// request-parse / service-call / response.Handle shape, with the
// idempotency key read from a request header.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/order-core/internal/decimalx"
	"github.com/ksred/order-core/internal/engine"
	"github.com/ksred/order-core/internal/refdata"
	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/types"
	"github.com/ksred/order-core/pkg/response"
)

// Handlers holds the dependencies the REST surface calls into.
type Handlers struct {
	engine  *engine.Engine
	store   *store.Store
	refdata *refdata.Repository
}

// New constructs Handlers.
func New(e *engine.Engine, st *store.Store, rd *refdata.Repository) *Handlers {
	return &Handlers{engine: e, store: st, refdata: rd}
}

// Register attaches every route to router.
func (h *Handlers) Register(router gin.IRouter) {
	orders := router.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("/:orderId", h.GetOrder)
	orders.GET("/investor/:investorId", h.ListOrdersForInvestor)
	orders.POST("/:orderId/cancel", h.CancelOrder)

	router.GET("/assets/:assetId", h.GetAsset)
	router.GET("/holdings/:investorId/:assetId", h.GetHolding)
}

// createOrderRequest carries investorId/assetId as strings (the core
// treats them as opaque ids regardless of any numeric-looking examples
// upstream), orderType instead of side, and a price that is null for a
// market order.
type createOrderRequest struct {
	InvestorID string   `json:"investorId" binding:"required"`
	AssetID    string   `json:"assetId" binding:"required"`
	OrderType  string   `json:"orderType" binding:"required"`
	Quantity   string   `json:"quantity" binding:"required"`
	Price      *string  `json:"price"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// CreateOrder handles POST /orders.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var side types.Side
	switch req.OrderType {
	case "BUY":
		side = types.SideBuy
	case "SELL":
		side = types.SideSell
	default:
		response.BadRequest(c, "orderType must be BUY or SELL")
		return
	}

	qty, err := decimalx.Parse(req.Quantity)
	if err != nil {
		response.BadRequest(c, "invalid quantity: "+err.Error())
		return
	}

	var price decimalx.Decimal
	hasPrice := req.Price != nil && *req.Price != ""
	if hasPrice {
		price, err = decimalx.Parse(*req.Price)
		if err != nil {
			response.BadRequest(c, "invalid price: "+err.Error())
			return
		}
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")

	order, err := h.engine.CreateOrder(c.Request.Context(), engine.CreateRequest{
		InvestorID:     req.InvestorID,
		AssetID:        req.AssetID,
		Side:           side,
		Quantity:       qty,
		Price:          price,
		HasPrice:       hasPrice,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		response.Handle(c, http.StatusAccepted, nil, err)
		return
	}

	response.Handle(c, http.StatusAccepted, createOrderResponse{OrderID: order.OrderID, Status: string(order.Status)}, nil)
}

// GetOrder handles GET /orders/:orderId.
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Request.Context(), c.Param("orderId"))
	response.Handle(c, http.StatusOK, order, err)
}

// ListOrdersForInvestor handles GET /orders/investor/:investorId.
func (h *Handlers) ListOrdersForInvestor(c *gin.Context) {
	var fromDate *time.Time
	if raw := c.Query("fromDate"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "invalid fromDate: "+err.Error())
			return
		}
		fromDate = &parsed
	}

	orders, err := h.engine.ListOrdersForInvestor(c.Request.Context(), c.Param("investorId"), fromDate)
	response.Handle(c, http.StatusOK, orders, err)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder handles POST /orders/:orderId/cancel.
func (h *Handlers) CancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	err := h.engine.CancelOrder(c.Request.Context(), c.Param("orderId"), req.Reason)
	response.Handle(c, http.StatusOK, gin.H{"message": "order cancelled"}, err)
}

// GetAsset handles GET /assets/:assetId.
func (h *Handlers) GetAsset(c *gin.Context) {
	asset, err := h.refdata.GetAsset(c.Request.Context(), c.Param("assetId"))
	response.Handle(c, http.StatusOK, asset, err)
}

// GetHolding handles GET /holdings/:investorId/:assetId.
func (h *Handlers) GetHolding(c *gin.Context) {
	var holding types.Holding
	err := h.store.DB.WithContext(c.Request.Context()).
		Where("investor_id = ? AND asset_id = ?", c.Param("investorId"), c.Param("assetId")).
		First(&holding).Error
	if err != nil {
		response.Handle(c, http.StatusOK, nil, store.Classify(err, "holding not found"))
		return
	}
	response.Handle(c, http.StatusOK, holding, nil)
}
