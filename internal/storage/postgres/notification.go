package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fabricesimpore/zakamall/internal/domain/notification"
)

const insertNotificationSQL = `INSERT INTO notifications (recipient_user_id, kind, title, body)
	VALUES ($1, $2, $3, $4)`

var _ notification.Notifier = (*NotificationRepository)(nil)

// NotificationRepository persists notification records in PostgreSQL.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a NotificationRepository that uses the
// given pool.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// NotifyLowStock records a low-stock notification for the vendor's user.
func (r *NotificationRepository) NotifyLowStock(ctx context.Context, vendorUserID, productName string, remaining int) error {
	body := fmt.Sprintf("%s is almost out of stock: %d left", productName, remaining)
	_, err := r.pool.Exec(ctx, insertNotificationSQL,
		vendorUserID, "low_stock", "Low stock", body,
	)
	if err != nil {
		return errors.Wrap(err, "creating low stock notification")
	}
	return nil
}
