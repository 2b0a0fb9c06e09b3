package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/materials"
)

// Quantities are stored as NUMERIC(10,2).
const quantityScale = 2

var maxQuantity = decimal.New(1, 8) // exclusive

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// decimals are validated as their float value so gt/gte tags apply
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// AddInput describes received stock.
type AddInput struct {
	Code           string          `validate:"required,max=64"`
	ProductName    string          `validate:"required,max=200"`
	Quantity       decimal.Decimal `validate:"gt=0"`
	ReceivedDate   time.Time       `validate:"required"`
	BestBeforeDate time.Time       `validate:"required"`
	Location       string          `validate:"max=100"`
	Category       string          `validate:"max=100"`
}

func (in AddInput) normalize() AddInput {
	in.Code = strings.TrimSpace(in.Code)
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.TrimSpace(in.Category)
	in.ReceivedDate = materials.DateOf(in.ReceivedDate)
	in.BestBeforeDate = materials.DateOf(in.BestBeforeDate)
	return in
}

func (in AddInput) check() error {
	if err := validate.Struct(in); err != nil {
		return invalid(err)
	}
	return checkQuantity("Quantity", in.Quantity)
}

// UpdateInput overwrites only the non-nil fields.
type UpdateInput struct {
	Code           *string
	ProductName    *string
	Quantity       *decimal.Decimal
	ReceivedDate   *time.Time
	BestBeforeDate *time.Time
	Location       *string
	Category       *string
}

func (in UpdateInput) empty() bool {
	return in.Code == nil && in.ProductName == nil && in.Quantity == nil &&
		in.ReceivedDate == nil && in.BestBeforeDate == nil && in.Location == nil && in.Category == nil
}

// apply validates the provided fields and writes them onto m.
func (in UpdateInput) apply(m *materials.Material) error {
	if in.empty() {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if in.Code != nil {
		v := strings.TrimSpace(*in.Code)
		if err := validate.Var(v, "required,max=64"); err != nil {
			return invalidField("Code", err)
		}
		m.Code = v
	}
	if in.ProductName != nil {
		v := strings.TrimSpace(*in.ProductName)
		if err := validate.Var(v, "required,max=200"); err != nil {
			return invalidField("ProductName", err)
		}
		m.ProductName = v
	}
	if in.Quantity != nil {
		if in.Quantity.IsNegative() {
			return fmt.Errorf("%w: Quantity must not be negative", ErrInvalidInput)
		}
		if err := checkQuantity("Quantity", *in.Quantity); err != nil {
			return err
		}
		m.Quantity = *in.Quantity
	}
	if in.ReceivedDate != nil {
		if in.ReceivedDate.IsZero() {
			return fmt.Errorf("%w: ReceivedDate is required", ErrInvalidInput)
		}
		m.ReceivedDate = materials.DateOf(*in.ReceivedDate)
	}
	if in.BestBeforeDate != nil {
		if in.BestBeforeDate.IsZero() {
			return fmt.Errorf("%w: BestBeforeDate is required", ErrInvalidInput)
		}
		m.BestBeforeDate = materials.DateOf(*in.BestBeforeDate)
	}
	if in.Location != nil {
		m.Location = strings.TrimSpace(*in.Location)
	}
	if in.Category != nil {
		m.Category = strings.TrimSpace(*in.Category)
	}
	return nil
}

func checkQuantity(field string, q decimal.Decimal) error {
	if !q.Equal(q.Round(quantityScale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places", ErrInvalidInput, field, quantityScale)
	}
	if q.GreaterThanOrEqual(maxQuantity) {
		return fmt.Errorf("%w: %s is too large", ErrInvalidInput, field)
	}
	return nil
}

// positive checks a withdrawal or threshold-style amount.
func positive(field string, q decimal.Decimal) error {
	if !q.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidInput, field)
	}
	return checkQuantity(field, q)
}

func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(parts, ", "))
}

func invalidField(field string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed %q", ErrInvalidInput, field, verrs[0].Tag())
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return ParseDateIn(s, time.UTC)
}

// ParseDateIn parses YYYY-MM-DD as midnight in loc.
func ParseDateIn(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(materials.DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed date %q", ErrInvalidInput, s)
	}
	return t, nil
}

// ParseQuantity parses a decimal amount such as "12.5".
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed quantity %q", ErrInvalidInput, s)
	}
	return d, nil
}
