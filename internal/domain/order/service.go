package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Fabricesimpore/zakamall/internal/domain/commission"
	"github.com/Fabricesimpore/zakamall/internal/domain/notification"
	"github.com/Fabricesimpore/zakamall/internal/domain/vendor"
)

// PlaceOrderRequest holds the input for placing an order: the draft order
// amounts plus its line items.
type PlaceOrderRequest struct {
	VendorID    string
	CustomerID  string
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Items       []LineRequest
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order *Order
}

// Service encapsulates order placement and cancellation business logic.
type Service struct {
	vendors    vendor.Repository
	orders     Repository
	commission *commission.Calculator
	notifier   notification.Notifier
	now        func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	vendors vendor.Repository,
	orders Repository,
	calc *commission.Calculator,
	notifier notification.Notifier,
) *Service {
	return &Service{
		vendors:    vendors,
		orders:     orders,
		commission: calc,
		notifier:   notifier,
		now:        time.Now,
	}
}

// PlaceOrder validates the draft, freezes the vendor's commission split, and
// persists the order with its inventory reservation in one atomic unit. If
// any line item cannot be reserved, nothing is persisted.
//
// Low-stock notifications fire after the transaction commits and are
// best-effort: their failure never affects the placed order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	lines := make([]LineRequest, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity == 0 {
			// Omitted quantity defaults to a single unit.
			item.Quantity = 1
		}
		if item.Quantity < 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		lines[i] = item
	}

	expected := req.Subtotal.Add(req.DeliveryFee).Add(req.TaxAmount)
	if !expected.Equal(req.TotalAmount) {
		return nil, ErrTotalMismatch
	}

	v, err := s.vendors.GetByID(ctx, req.VendorID)
	if err != nil {
		if errors.Is(err, vendor.ErrNotFound) {
			return nil, &VendorNotFoundError{VendorID: req.VendorID}
		}
		return nil, errors.Wrap(err, "get vendor")
	}

	split := s.commission.ComputeSplit(req.Subtotal, v.CommissionRate)

	o := &Order{
		ID:          uuid.New().String(),
		OrderNumber: NewOrderNumber(s.now()),
		VendorID:    req.VendorID,
		CustomerID:  req.CustomerID,

		Subtotal:    req.Subtotal,
		DeliveryFee: req.DeliveryFee,
		TaxAmount:   req.TaxAmount,
		TotalAmount: req.TotalAmount,

		CommissionRate:   split.RatePercent,
		CommissionAmount: split.CommissionAmount,
		VendorEarnings:   split.VendorEarnings,
		PlatformRevenue:  split.PlatformRevenue,

		Status: StatusPending,
	}

	levels, err := s.orders.CreateWithReservation(ctx, o, lines)
	if err != nil {
		return nil, err
	}

	s.notifyLowStock(ctx, v.UserID, levels)

	return &PlaceOrderResult{Order: o}, nil
}

// CancelOrder marks the order cancelled and restores inventory for its
// tracked line items. Restoration is an independent, idempotent-per-order
// unit: cancelling twice never double-increments stock.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	if err := s.orders.MarkCancelled(ctx, orderID); err != nil {
		return err
	}

	restored, err := s.orders.RestoreInventory(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "restore inventory")
	}
	if !restored {
		zctx.From(ctx).Info("inventory already restored",
			zap.String("order_id", orderID),
		)
	}
	return nil
}

// notifyLowStock fires a notification for every tracked product left at or
// below the threshold. Errors are logged and swallowed.
func (s *Service) notifyLowStock(ctx context.Context, vendorUserID string, levels []StockLevel) {
	lg := zctx.From(ctx)
	for _, lvl := range levels {
		if !lvl.Tracked || lvl.Remaining <= 0 || lvl.Remaining > notification.LowStockThreshold {
			continue
		}
		if err := s.notifier.NotifyLowStock(ctx, vendorUserID, lvl.ProductName, lvl.Remaining); err != nil {
			lg.Warn("low stock notification failed",
				zap.String("product_id", lvl.ProductID),
				zap.Int("remaining", lvl.Remaining),
				zap.Error(err),
			)
		}
	}
}
