package postgres

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Fabricesimpore/zakamall/internal/domain/order"
)

const (
	// Locks the product rows for the whole transaction. Rows are locked in
	// ascending id order so two orders touching the same products cannot
	// deadlock.
	lockProductsSQL = `SELECT id, name, price, quantity, track_quantity
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	insertOrderSQL = `INSERT INTO orders (
			id, order_number, vendor_id, customer_id,
			subtotal, delivery_fee, tax_amount, total_amount,
			commission_rate, commission_amount, vendor_earnings, platform_revenue,
			status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	// The quantity guard makes the decrement conditional even though the row
	// is already locked: a zero affected-row count means the stock check and
	// the update raced, and the transaction must abort.
	decrementStockSQL = `UPDATE products SET quantity = quantity - $2
		WHERE id = $1 AND track_quantity AND quantity >= $2
		RETURNING quantity`

	markCancelledSQL = `UPDATE orders SET status = 'cancelled' WHERE id = $1`

	claimRestoreSQL = `UPDATE orders SET inventory_restored_at = now()
		WHERE id = $1 AND inventory_restored_at IS NULL`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	trackedItemsSQL = `SELECT oi.product_id, oi.quantity
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1 AND p.track_quantity
		ORDER BY oi.product_id`

	incrementStockSQL = `UPDATE products SET quantity = quantity + $2 WHERE id = $1`

	getOrderSQL = `SELECT id, order_number, vendor_id, customer_id,
			subtotal, delivery_fee, tax_amount, total_amount,
			commission_rate, commission_amount, vendor_earnings, platform_revenue,
			status, created_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT product_id, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// lockedProduct is a product row held under FOR UPDATE for the duration of
// the placement transaction.
type lockedProduct struct {
	id       string
	name     string
	price    decimal.Decimal
	quantity int
	tracked  bool
}

// CreateWithReservation persists the order, its items, and the inventory
// decrement in a single transaction.
//
// Product rows are locked up front with SELECT ... FOR UPDATE, then stock is
// verified for every line before anything is written, so a failed line rolls
// the whole order back with no partial reservation. The decrement itself is
// a conditional update verified by affected-row count, closing the
// check-then-act window against writers outside this locking discipline.
func (r *OrderRepository) CreateWithReservation(ctx context.Context, o *order.Order, lines []order.LineRequest) ([]order.StockLevel, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	products, err := lockProducts(ctx, tx, lines)
	if err != nil {
		return nil, err
	}

	// All-or-nothing stock check before any write. reserved accumulates
	// quantities so duplicate lines for one product are counted together.
	reserved := make(map[string]int, len(lines))
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, &order.ProductNotFoundError{ProductID: line.ProductID}
		}
		if p.tracked && p.quantity-reserved[p.id] < line.Quantity {
			return nil, &order.InsufficientStockError{
				ProductID:   p.id,
				ProductName: p.name,
				Available:   p.quantity - reserved[p.id],
				Requested:   line.Quantity,
			}
		}
		reserved[p.id] += line.Quantity
	}

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.OrderNumber, o.VendorID, o.CustomerID,
		o.Subtotal, o.DeliveryFee, o.TaxAmount, o.TotalAmount,
		o.CommissionRate, o.CommissionAmount, o.VendorEarnings, o.PlatformRevenue,
		string(o.Status),
	).Scan(&o.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "creating order %q", o.ID)
	}

	o.Items = make([]order.Item, len(lines))
	remaining := make(map[string]int, len(lines))
	for i, line := range lines {
		p := products[line.ProductID]

		if _, err := tx.Exec(ctx, insertOrderItemSQL, o.ID, p.id, line.Quantity, p.price); err != nil {
			return nil, errors.Wrapf(err, "creating order item for product %q", p.id)
		}
		o.Items[i] = order.Item{ProductID: p.id, Quantity: line.Quantity, UnitPrice: p.price}

		if !p.tracked {
			remaining[p.id] = p.quantity
			continue
		}

		var left int
		err := tx.QueryRow(ctx, decrementStockSQL, p.id, line.Quantity).Scan(&left)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// The guard rejected the decrement despite the earlier check.
				return nil, &order.InsufficientStockError{
					ProductID:   p.id,
					ProductName: p.name,
					Available:   p.quantity,
					Requested:   line.Quantity,
				}
			}
			return nil, errors.Wrapf(err, "decrementing stock for product %q", p.id)
		}
		remaining[p.id] = left
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit transaction")
	}

	levels := make([]order.StockLevel, 0, len(products))
	for _, p := range products {
		levels = append(levels, order.StockLevel{
			ProductID:   p.id,
			ProductName: p.name,
			Remaining:   remaining[p.id],
			Tracked:     p.tracked,
		})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ProductID < levels[j].ProductID })
	return levels, nil
}

// lockProducts fetches and row-locks every product referenced by the lines.
func lockProducts(ctx context.Context, tx pgx.Tx, lines []order.LineRequest) (map[string]lockedProduct, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}

	rows, err := tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "locking products")
	}

	fetched, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lockedProduct, error) {
		var p lockedProduct
		err := row.Scan(&p.id, &p.name, &p.price, &p.quantity, &p.tracked)
		return p, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning products")
	}

	products := make(map[string]lockedProduct, len(fetched))
	for _, p := range fetched {
		products[p.id] = p
	}
	return products, nil
}

// MarkCancelled sets the order's status to cancelled.
func (r *OrderRepository) MarkCancelled(ctx context.Context, orderID string) error {
	ct, err := r.pool.Exec(ctx, markCancelledSQL, orderID)
	if err != nil {
		return errors.Wrapf(err, "cancelling order %q", orderID)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// RestoreInventory increments stock for every tracked line item of the order
// in one transaction. The inventory_restored_at column is claimed first with
// an affected-row check, so a second call for the same order is a no-op and
// returns false. Restored quantities take the same per-row atomic update
// path as the placement decrement.
func (r *OrderRepository) RestoreInventory(ctx context.Context, orderID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	ct, err := tx.Exec(ctx, claimRestoreSQL, orderID)
	if err != nil {
		return false, errors.Wrapf(err, "claiming restore for order %q", orderID)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, orderExistsSQL, orderID).Scan(&exists); err != nil {
			return false, errors.Wrapf(err, "checking order %q", orderID)
		}
		if !exists {
			return false, order.ErrNotFound
		}
		// Already restored: idempotent no-op.
		return false, nil
	}

	type restoredItem struct {
		productID string
		quantity  int
	}
	rows, err := tx.Query(ctx, trackedItemsSQL, orderID)
	if err != nil {
		return false, errors.Wrapf(err, "loading items for order %q", orderID)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (restoredItem, error) {
		var it restoredItem
		err := row.Scan(&it.productID, &it.quantity)
		return it, err
	})
	if err != nil {
		return false, errors.Wrap(err, "scanning items")
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, incrementStockSQL, it.productID, it.quantity); err != nil {
			return false, errors.Wrapf(err, "restoring stock for product %q", it.productID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit transaction")
	}
	return true, nil
}

// GetByID loads an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.VendorID, &o.CustomerID,
		&o.Subtotal, &o.DeliveryFee, &o.TaxAmount, &o.TotalAmount,
		&o.CommissionRate, &o.CommissionAmount, &o.VendorEarnings, &o.PlatformRevenue,
		&status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", orderID)
	}
	o.Status = order.Status(status)

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading items for order %q", orderID)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning items")
	}
	return &o, nil
}
