package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/archive"
	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/domain/transactions"
	"github.com/Israelshecktar/IMS/internal/ledger"
)

// unit is the ledger.Tx view over a working copy of the state.
type unit struct {
	st  *state
	now func() time.Time
}

func (u *unit) Materials() ledger.MaterialWriter    { return (*materialWriter)(u) }
func (u *unit) Transactions() ledger.TransactionLog { return (*txLog)(u) }
func (u *unit) Archive() ledger.ArchiveStore        { return (*archiveStore)(u) }

type materialWriter unit

// The whole unit already holds the store mutex, so locking is a plain read.
func (w *materialWriter) LockByID(_ context.Context, id int64) (*materials.Material, error) {
	return w.st.byID(id)
}

func (w *materialWriter) LockByCode(_ context.Context, code string) (*materials.Material, error) {
	return w.st.byCodeLookup(code)
}

func (w *materialWriter) Create(_ context.Context, m materials.Material) (*materials.Material, error) {
	if _, taken := w.st.byCode[m.Code]; taken {
		return nil, fmt.Errorf("%w: %q", ledger.ErrDuplicateKey, m.Code)
	}
	w.st.nextMaterialID++
	now := w.now()
	m.ID = w.st.nextMaterialID
	m.CreatedAt, m.UpdatedAt = now, now
	w.st.materials[m.ID] = m
	w.st.byCode[m.Code] = m.ID
	return &m, nil
}

func (w *materialWriter) Save(_ context.Context, m materials.Material) (*materials.Material, error) {
	cur, ok := w.st.materials[m.ID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ledger.ErrNotFound, m.ID)
	}
	if m.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: negative quantity for %q", ledger.ErrStorage, m.Code)
	}
	if m.Code != cur.Code {
		if _, taken := w.st.byCode[m.Code]; taken {
			return nil, fmt.Errorf("%w: %q", ledger.ErrDuplicateKey, m.Code)
		}
		delete(w.st.byCode, cur.Code)
		w.st.byCode[m.Code] = m.ID
	}
	m.CreatedAt = cur.CreatedAt
	m.UpdatedAt = w.now()
	w.st.materials[m.ID] = m
	return &m, nil
}

func (w *materialWriter) Delete(_ context.Context, id int64) error {
	m, ok := w.st.materials[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ledger.ErrNotFound, id)
	}
	for _, t := range w.st.txs {
		if t.MaterialID == id {
			return fmt.Errorf("%w: id %d", ledger.ErrHasDependentTransactions, id)
		}
	}
	delete(w.st.materials, id)
	delete(w.st.byCode, m.Code)
	return nil
}

type txLog unit

func (l *txLog) Append(_ context.Context, materialID int64, qty decimal.Decimal, at time.Time) (*transactions.Transaction, error) {
	if _, ok := l.st.materials[materialID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ledger.ErrNotFound, materialID)
	}
	l.st.nextTxID++
	t := transactions.Transaction{
		ID:            l.st.nextTxID,
		MaterialID:    materialID,
		QuantityTaken: qty,
		TakenAt:       at,
	}
	l.st.txs = append(l.st.txs, t)
	return &t, nil
}

func (l *txLog) ExistsForMaterial(_ context.Context, materialID int64) (bool, error) {
	for _, t := range l.st.txs {
		if t.MaterialID == materialID {
			return true, nil
		}
	}
	return false, nil
}

type archiveStore unit

func (a *archiveStore) Archive(_ context.Context, m materials.Material, deletedAt time.Time) (*archive.ArchivedMaterial, error) {
	a.st.nextArchiveID++
	rec := archive.Snapshot(m, deletedAt)
	rec.ID = a.st.nextArchiveID
	a.st.archived = append(a.st.archived, rec)
	return &rec, nil
}
