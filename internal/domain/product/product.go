// Package product holds the catalog product entity.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item offered by a vendor.
//
// When TrackQuantity is true, Quantity is decremented by order placement and
// incremented by inventory restoration, and a committed transaction never
// leaves it negative. Untracked products are always considered available and
// their quantity is never touched.
type Product struct {
	ID            string
	VendorID      string
	Name          string
	Price         decimal.Decimal
	Quantity      int
	TrackQuantity bool
}

// Repository defines read operations for the product catalog. Stock mutation
// happens only inside the order transaction and is owned by order.Repository.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
