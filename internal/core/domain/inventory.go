package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation records stock taken from a product's available quantity.
// Token identifies the reservation so it can be released at most once.
type Reservation struct {
	Token      string
	ProductID  int64
	Quantity   int
	UnitPrice  decimal.Decimal
	ReservedAt time.Time
}
