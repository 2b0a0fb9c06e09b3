package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/archive"
	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/domain/transactions"
)

// Recorder receives one observation per ledger operation.
type Recorder interface {
	ObserveOperation(op, outcome string, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}

// Ledger owns the authoritative stock levels. Every mutation runs as one
// atomic unit of the underlying Store; the ledger does no authorization.
type Ledger struct {
	store Store
	log   *slog.Logger
	rec   Recorder
	now   func() time.Time
}

type Option func(*Ledger)

func WithRecorder(r Recorder) Option {
	return func(l *Ledger) {
		if r != nil {
			l.rec = r
		}
	}
}

// WithClock overrides the clock used for withdrawal and deletion timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store Store, log *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		log:   log,
		rec:   nopRecorder{},
		now:   time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// observe is deferred with a pointer to the operation's named error result.
func (l *Ledger) observe(op string, start time.Time, errp *error) {
	outcome := Outcome(*errp)
	l.rec.ObserveOperation(op, outcome, time.Since(start))
	if outcome == "storage_error" {
		l.log.Error("ledger operation failed", "op", op, "err", *errp)
	}
}

// AddOrMerge records received stock. An existing code has its quantity
// increased and its descriptive fields replaced; a new code creates a material.
func (l *Ledger) AddOrMerge(ctx context.Context, in AddInput) (m *materials.Material, err error) {
	defer l.observe("add", time.Now(), &err)

	in = in.normalize()
	if err = in.check(); err != nil {
		return nil, err
	}

	m, err = l.addOrMerge(ctx, in)
	if errors.Is(err, ErrDuplicateKey) {
		// lost an insert race for a new code; the row exists now, so merge into it
		m, err = l.addOrMerge(ctx, in)
	}
	if err != nil {
		return nil, err
	}
	l.log.Debug("stock received", "code", m.Code, "delta", in.Quantity.String(), "quantity", m.Quantity.String())
	return m, nil
}

func (l *Ledger) addOrMerge(ctx context.Context, in AddInput) (*materials.Material, error) {
	var out *materials.Material
	err := l.store.Atomic(ctx, func(tx Tx) error {
		existing, err := tx.Materials().LockByCode(ctx, in.Code)
		switch {
		case errors.Is(err, ErrNotFound):
			out, err = tx.Materials().Create(ctx, materials.Material{
				Code:           in.Code,
				ProductName:    in.ProductName,
				Quantity:       in.Quantity,
				ReceivedDate:   in.ReceivedDate,
				BestBeforeDate: in.BestBeforeDate,
				Location:       in.Location,
				Category:       in.Category,
			})
			return err
		case err != nil:
			return err
		}

		merged := *existing
		merged.Quantity = existing.Quantity.Add(in.Quantity)
		if err := checkQuantity("Quantity", merged.Quantity); err != nil {
			return err
		}
		merged.ProductName = in.ProductName
		merged.ReceivedDate = in.ReceivedDate
		merged.BestBeforeDate = in.BestBeforeDate
		merged.Location = in.Location
		if in.Category != "" {
			merged.Category = in.Category
		}
		out, err = tx.Materials().Save(ctx, merged)
		return err
	})
	return out, err
}

// Withdraw takes qty out of the material with the given code and logs the
// withdrawal in the same unit. It returns the remaining quantity.
func (l *Ledger) Withdraw(ctx context.Context, code string, qty decimal.Decimal) (remaining decimal.Decimal, err error) {
	defer l.observe("withdraw", time.Now(), &err)

	code = strings.TrimSpace(code)
	if code == "" {
		return decimal.Zero, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if err = positive("quantity", qty); err != nil {
		return decimal.Zero, err
	}

	err = l.store.Atomic(ctx, func(tx Tx) error {
		m, err := tx.Materials().LockByCode(ctx, code)
		if err != nil {
			return err
		}
		if m.Quantity.LessThan(qty) {
			return fmt.Errorf("%w: %s has %s, requested %s", ErrInsufficientStock, code, m.Quantity, qty)
		}

		m.Quantity = m.Quantity.Sub(qty)
		saved, err := tx.Materials().Save(ctx, *m)
		if err != nil {
			return err
		}
		if _, err := tx.Transactions().Append(ctx, m.ID, qty, l.now()); err != nil {
			return err
		}
		remaining = saved.Quantity
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	l.log.Debug("stock withdrawn", "code", code, "qty", qty.String(), "remaining", remaining.String())
	return remaining, nil
}

// Update overwrites the provided fields of material id. Code uniqueness is
// left to the store; a collision comes back as ErrDuplicateKey.
func (l *Ledger) Update(ctx context.Context, id int64, in UpdateInput) (m *materials.Material, err error) {
	defer l.observe("update", time.Now(), &err)

	err = l.store.Atomic(ctx, func(tx Tx) error {
		cur, err := tx.Materials().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if err := in.apply(cur); err != nil {
			return err
		}
		m, err = tx.Materials().Save(ctx, *cur)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Delete moves material id into the archive. Materials with withdrawal
// history cannot be deleted.
func (l *Ledger) Delete(ctx context.Context, id int64) (a *archive.ArchivedMaterial, err error) {
	defer l.observe("delete", time.Now(), &err)

	err = l.store.Atomic(ctx, func(tx Tx) error {
		m, err := tx.Materials().LockByID(ctx, id)
		if err != nil {
			return err
		}
		has, err := tx.Transactions().ExistsForMaterial(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return fmt.Errorf("%w: %s", ErrHasDependentTransactions, m.Code)
		}
		if a, err = tx.Archive().Archive(ctx, *m, l.now()); err != nil {
			return err
		}
		return tx.Materials().Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("material archived", "id", id, "code", a.Code)
	return a, nil
}

// BelowThreshold returns materials with quantity <= threshold, by id.
func (l *Ledger) BelowThreshold(ctx context.Context, threshold decimal.Decimal) (out []materials.Material, err error) {
	defer l.observe("below_threshold", time.Now(), &err)
	if threshold.IsNegative() {
		return nil, fmt.Errorf("%w: threshold must not be negative", ErrInvalidInput)
	}
	return l.store.BelowThreshold(ctx, threshold)
}

// ExpiringBefore returns materials whose best-before date is on or before
// cutoff's calendar date, by id.
func (l *Ledger) ExpiringBefore(ctx context.Context, cutoff time.Time) (out []materials.Material, err error) {
	defer l.observe("expiring_before", time.Now(), &err)
	if cutoff.IsZero() {
		return nil, fmt.Errorf("%w: cutoff is required", ErrInvalidInput)
	}
	return l.store.ExpiringBefore(ctx, materials.DateOf(cutoff))
}

func (l *Ledger) Get(ctx context.Context, id int64) (*materials.Material, error) {
	return l.store.Material(ctx, id)
}

func (l *Ledger) GetByCode(ctx context.Context, code string) (*materials.Material, error) {
	return l.store.MaterialByCode(ctx, strings.TrimSpace(code))
}

// List returns one page of materials and the total number of matches.
func (l *Ledger) List(ctx context.Context, f materials.Filter) ([]materials.Material, int, error) {
	return l.store.ListMaterials(ctx, f.Normalize())
}

// TakenBetween returns withdrawals in [start, end], oldest first.
func (l *Ledger) TakenBetween(ctx context.Context, start, end time.Time) ([]transactions.Taken, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: both start and end are required", ErrInvalidInput)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end is before start", ErrInvalidInput)
	}
	return l.store.TakenBetween(ctx, start, end)
}

func (l *Ledger) History(ctx context.Context, materialID int64) ([]transactions.Transaction, error) {
	return l.store.History(ctx, materialID)
}

// Archived returns deleted materials in deletion order.
func (l *Ledger) Archived(ctx context.Context) ([]archive.ArchivedMaterial, error) {
	return l.store.Archived(ctx)
}
