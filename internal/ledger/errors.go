package ledger

import "errors"

var (
	ErrInvalidInput             = errors.New("ledger: invalid input")
	ErrNotFound                 = errors.New("ledger: material not found")
	ErrInsufficientStock        = errors.New("ledger: insufficient stock")
	ErrDuplicateKey             = errors.New("ledger: duplicate material code")
	ErrHasDependentTransactions = errors.New("ledger: material has withdrawal history")
	ErrStorage                  = errors.New("ledger: storage failure")
)

// Outcome maps err to a stable label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrHasDependentTransactions):
		return "has_transactions"
	default:
		return "storage_error"
	}
}
