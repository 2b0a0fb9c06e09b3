package transactions

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable record of one withdrawal.
type Transaction struct {
	ID            int64
	MaterialID    int64
	QuantityTaken decimal.Decimal
	TakenAt       time.Time
}

// Taken is a Transaction joined with its material for reporting.
type Taken struct {
	Transaction
	MaterialCode string
	ProductName  string
}
