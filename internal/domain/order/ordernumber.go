package order

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// orderNumberPrefix is the human-readable marker on every order number.
const orderNumberPrefix = "ZM"

// NewOrderNumber returns a display order number of the form ZM-2026-3F9A2C.
//
// The suffix is derived from random UUID bytes rather than the wall clock,
// so concurrent placements within the same instant get distinct numbers. A
// unique index on the column backstops the residual collision chance. Order
// numbers are advisory and never used as primary keys.
func NewOrderNumber(now time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(hex.EncodeToString(id[:3]))
	return fmt.Sprintf("%s-%d-%s", orderNumberPrefix, now.Year(), suffix)
}
