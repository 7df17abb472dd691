// Package order implements the order placement transaction engine: stock
// reservation, commission snapshot, atomic persistence, and the compensating
// inventory restoration used on cancellation.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Transitions other than
// cancellation are driven by the order-status API, not by this engine.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusInTransit      Status = "in_transit"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Order is a single-vendor order together with its frozen commission split.
//
// The commission fields are a snapshot of the vendor's rate at the moment of
// sale. They are persisted once at creation and never recomputed, so later
// rate changes cannot alter historical orders.
type Order struct {
	ID          string
	OrderNumber string
	VendorID    string
	CustomerID  string

	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal

	CommissionRate   decimal.Decimal
	CommissionAmount decimal.Decimal
	VendorEarnings   decimal.Decimal
	PlatformRevenue  decimal.Decimal

	Status    Status
	Items     []Item
	CreatedAt time.Time
}

// Item is a persisted order line. Items are created only inside the order
// transaction and are immutable afterwards. UnitPrice is read from the
// product row under lock, never trusted from the client.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineRequest is a caller-supplied line item for order placement.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// StockLevel reports a product's remaining quantity after the order
// transaction committed. Used to drive low-stock notifications.
type StockLevel struct {
	ProductID   string
	ProductName string
	Remaining   int
	Tracked     bool
}

// Repository defines the transactional persistence operations of the engine.
//
// CreateWithReservation must execute as one atomic unit: lock the product
// rows, verify tracked stock for every line (all-or-nothing), insert the
// order and its items, and decrement inventory with a conditional update.
// On any failure nothing is persisted. It fills o.Items with the priced
// lines and returns the post-commit stock levels of the touched products.
//
// RestoreInventory is the compensating operation. It must be idempotent per
// order: the first call increments tracked items and returns true, repeat
// calls change nothing and return false.
type Repository interface {
	CreateWithReservation(ctx context.Context, o *Order, lines []LineRequest) ([]StockLevel, error)
	MarkCancelled(ctx context.Context, orderID string) error
	RestoreInventory(ctx context.Context, orderID string) (bool, error)
	GetByID(ctx context.Context, orderID string) (*Order, error)
}
