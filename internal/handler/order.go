package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Fabricesimpore/zakamall/internal/domain/order"
)

// orderRequest is the JSON body for POST /api/orders. Amounts accept both
// JSON numbers and strings; they are parsed as decimals, never floats.
type orderRequest struct {
	VendorID    string             `json:"vendorId"`
	CustomerID  string             `json:"customerId"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	DeliveryFee decimal.Decimal    `json:"deliveryFee"`
	TaxAmount   decimal.Decimal    `json:"taxAmount"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Items       []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// orderResponse mirrors the persisted order. Money fields are fixed-precision
// strings so clients never see binary floating point artifacts.
type orderResponse struct {
	ID               string              `json:"id"`
	OrderNumber      string              `json:"orderNumber"`
	VendorID         string              `json:"vendorId"`
	CustomerID       string              `json:"customerId"`
	Subtotal         string              `json:"subtotal"`
	DeliveryFee      string              `json:"deliveryFee"`
	TaxAmount        string              `json:"taxAmount"`
	TotalAmount      string              `json:"totalAmount"`
	CommissionRate   string              `json:"commissionRate"`
	CommissionAmount string              `json:"commissionAmount"`
	VendorEarnings   string              `json:"vendorEarnings"`
	PlatformRevenue  string              `json:"platformRevenue"`
	Status           string              `json:"status"`
	Items            []orderItemResponse `json:"items"`
	CreatedAt        time.Time           `json:"createdAt"`
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.LineRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	result, err := h.orderService.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		VendorID:    req.VendorID,
		CustomerID:  req.CustomerID,
		Subtotal:    req.Subtotal,
		DeliveryFee: req.DeliveryFee,
		TaxAmount:   req.TaxAmount,
		TotalAmount: req.TotalAmount,
		Items:       items,
	})
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order))
}

// CancelOrder handles POST /api/orders/{id}/cancel. Cancelling an already
// cancelled order restores nothing and still succeeds.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	if err := h.orderService.CancelOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeOrderError maps domain errors to HTTP responses. Validation errors
// carry enough detail for the customer to correct the cart; integrity errors
// surface as a generic server failure.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, order.ErrTotalMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}

	var pnfErr *order.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	}

	var isErr *order.InsufficientStockError
	if errors.As(err, &isErr) {
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			errorBody
			ProductID string `json:"productId"`
			Available int    `json:"available"`
			Requested int    `json:"requested"`
		}{
			errorBody: errorBody{Code: http.StatusUnprocessableEntity, Message: isErr.Error()},
			ProductID: isErr.ProductID,
			Available: isErr.Available,
			Requested: isErr.Requested,
		})
		return
	}

	// VendorNotFoundError is a data-integrity problem, not a user error.
	writeServerError(w, r, err)
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
	}

	return orderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		VendorID:         o.VendorID,
		CustomerID:       o.CustomerID,
		Subtotal:         o.Subtotal.StringFixed(2),
		DeliveryFee:      o.DeliveryFee.StringFixed(2),
		TaxAmount:        o.TaxAmount.StringFixed(2),
		TotalAmount:      o.TotalAmount.StringFixed(2),
		CommissionRate:   o.CommissionRate.StringFixed(2),
		CommissionAmount: o.CommissionAmount.StringFixed(2),
		VendorEarnings:   o.VendorEarnings.StringFixed(2),
		PlatformRevenue:  o.PlatformRevenue.StringFixed(2),
		Status:           string(o.Status),
		Items:            items,
		CreatedAt:        o.CreatedAt,
	}
}
