package order

import "fmt"

// Sentinel errors for order validation.
var (
	ErrEmptyItems    = fmt.Errorf("items required")
	ErrTotalMismatch = fmt.Errorf("total amount must equal subtotal + delivery fee + tax")
	ErrNotFound      = fmt.Errorf("order not found")
)

// ProductNotFoundError indicates a line item references a product that does
// not exist. The client sent stale or invalid cart data.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a negative quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a tracked product cannot cover the
// requested quantity. It aborts the whole order; no other line is reserved.
// The fields carry enough detail for the customer to adjust the cart.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available, %d requested",
		e.ProductName, e.Available, e.Requested)
}

// VendorNotFoundError indicates the order's vendor id does not resolve.
// Unlike the validation errors above this signals a referential-integrity
// problem upstream and is surfaced as a server error, not a user error.
type VendorNotFoundError struct {
	VendorID string
}

func (e *VendorNotFoundError) Error() string {
	return fmt.Sprintf("vendor %s not found", e.VendorID)
}
