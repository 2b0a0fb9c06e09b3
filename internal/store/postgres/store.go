// Package postgres implements the ledger store on PostgreSQL. Every unit of
// work is one pgx transaction; materials are locked with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/archive"
	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/domain/transactions"
	"github.com/Israelshecktar/IMS/internal/infra/db"
	"github.com/Israelshecktar/IMS/internal/ledger"
)

type Store struct {
	pool *pgxpool.Pool

	materials    *materials.Repo
	transactions *transactions.Repo
	archive      *archive.Repo
}

var _ ledger.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:         pool,
		materials:    materials.NewRepo(pool),
		transactions: transactions.NewRepo(pool),
		archive:      archive.NewRepo(pool),
	}
}

// translate maps driver errors onto the ledger's error taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrInvalidInput) || errors.Is(err, ledger.ErrNotFound) ||
		errors.Is(err, ledger.ErrInsufficientStock) || errors.Is(err, ledger.ErrDuplicateKey) ||
		errors.Is(err, ledger.ErrHasDependentTransactions) || errors.Is(err, ledger.ErrStorage) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, op)
	}
	switch db.PgCode(err) {
	case db.CodeUniqueViolation:
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateKey, op)
	case db.CodeForeignKeyViolation:
		return fmt.Errorf("%w: %s", ledger.ErrHasDependentTransactions, op)
	case db.CodeCheckViolation:
		return fmt.Errorf("%w: %s: %w", ledger.ErrInvalidInput, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ledger.ErrStorage, op, err)
}

func (s *Store) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&unit{
			materials:    materials.NewRepo(tx),
			transactions: transactions.NewRepo(tx),
			archive:      archive.NewRepo(tx),
		})
	})
	return translate("transaction", err)
}

func (s *Store) Material(ctx context.Context, id int64) (*materials.Material, error) {
	m, err := s.materials.GetByID(ctx, id)
	return m, translate(fmt.Sprintf("material id %d", id), err)
}

func (s *Store) MaterialByCode(ctx context.Context, code string) (*materials.Material, error) {
	m, err := s.materials.GetByCode(ctx, code)
	return m, translate(fmt.Sprintf("material code %q", code), err)
}

func (s *Store) ListMaterials(ctx context.Context, f materials.Filter) ([]materials.Material, int, error) {
	out, total, err := s.materials.List(ctx, f)
	return out, total, translate("list materials", err)
}

func (s *Store) BelowThreshold(ctx context.Context, threshold decimal.Decimal) ([]materials.Material, error) {
	out, err := s.materials.BelowThreshold(ctx, threshold)
	return out, translate("below threshold", err)
}

func (s *Store) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]materials.Material, error) {
	out, err := s.materials.ExpiringBefore(ctx, cutoff)
	return out, translate("expiring before", err)
}

func (s *Store) TakenBetween(ctx context.Context, start, end time.Time) ([]transactions.Taken, error) {
	out, err := s.transactions.ByDateRange(ctx, start, end)
	return out, translate("transactions by date", err)
}

func (s *Store) History(ctx context.Context, materialID int64) ([]transactions.Transaction, error) {
	out, err := s.transactions.ForMaterial(ctx, materialID)
	return out, translate("material history", err)
}

func (s *Store) Archived(ctx context.Context) ([]archive.ArchivedMaterial, error) {
	out, err := s.archive.ListAll(ctx)
	return out, translate("list archive", err)
}

// unit binds the repos to one pgx transaction.
type unit struct {
	materials    *materials.Repo
	transactions *transactions.Repo
	archive      *archive.Repo
}

func (u *unit) Materials() ledger.MaterialWriter    { return materialWriter{u.materials} }
func (u *unit) Transactions() ledger.TransactionLog { return txLog{u.transactions} }
func (u *unit) Archive() ledger.ArchiveStore        { return archiveStore{u.archive} }

type materialWriter struct{ r *materials.Repo }

func (w materialWriter) LockByID(ctx context.Context, id int64) (*materials.Material, error) {
	m, err := w.r.LockByID(ctx, id)
	return m, translate(fmt.Sprintf("material id %d", id), err)
}

func (w materialWriter) LockByCode(ctx context.Context, code string) (*materials.Material, error) {
	m, err := w.r.LockByCode(ctx, code)
	return m, translate(fmt.Sprintf("material code %q", code), err)
}

func (w materialWriter) Create(ctx context.Context, m materials.Material) (*materials.Material, error) {
	out, err := w.r.Create(ctx, m)
	return out, translate(fmt.Sprintf("create material %q", m.Code), err)
}

func (w materialWriter) Save(ctx context.Context, m materials.Material) (*materials.Material, error) {
	out, err := w.r.Save(ctx, m)
	return out, translate(fmt.Sprintf("save material %q", m.Code), err)
}

func (w materialWriter) Delete(ctx context.Context, id int64) error {
	return translate(fmt.Sprintf("delete material id %d", id), w.r.Delete(ctx, id))
}

type txLog struct{ r *transactions.Repo }

func (l txLog) Append(ctx context.Context, materialID int64, qty decimal.Decimal, at time.Time) (*transactions.Transaction, error) {
	t, err := l.r.Append(ctx, materialID, qty, at)
	return t, translate("append transaction", err)
}

func (l txLog) ExistsForMaterial(ctx context.Context, materialID int64) (bool, error) {
	ok, err := l.r.ExistsForMaterial(ctx, materialID)
	return ok, translate("transactions exist", err)
}

type archiveStore struct{ r *archive.Repo }

func (a archiveStore) Archive(ctx context.Context, m materials.Material, deletedAt time.Time) (*archive.ArchivedMaterial, error) {
	out, err := a.r.Archive(ctx, m, deletedAt)
	return out, translate("archive material", err)
}
