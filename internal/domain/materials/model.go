package materials

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material is one stocked, uniquely coded batch of liquid product.
type Material struct {
	ID             int64
	Code           string
	ProductName    string
	Quantity       decimal.Decimal // litres, two fractional digits
	ReceivedDate   time.Time
	BestBeforeDate time.Time
	Location       string
	Category       string // optional classification
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filter narrows List by case-insensitive substrings. Empty fields match everything.
type Filter struct {
	Code        string
	ProductName string
	Location    string
	Page        int // 1-based
	PerPage     int
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	MaxPage        = 1_000_000
)

// Normalize fills paging defaults.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

// Offset is the number of rows skipped before the normalized page.
func (f Filter) Offset() int {
	f = f.Normalize()
	return (f.Page - 1) * f.PerPage
}

// DateOf truncates t to its calendar date, expressed as midnight UTC.
// Received and best-before dates are always stored in this form.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const DateLayout = "2006-01-02"
