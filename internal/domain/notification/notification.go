// Package notification defines the outbound notification boundary.
package notification

import "context"

// LowStockThreshold is the remaining quantity at or below which (but above
// zero) a low-stock notification is sent to the vendor.
const LowStockThreshold = 5

// Notifier delivers notifications to users. Implementations are best-effort:
// the order engine logs and ignores delivery failures, so an outage in the
// notification store can never fail an order.
type Notifier interface {
	NotifyLowStock(ctx context.Context, vendorUserID, productName string, remaining int) error
}
