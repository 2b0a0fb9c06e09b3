package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/archive"
	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/domain/transactions"
)

// Store is the persistence boundary of the ledger.
//
// Implementations report missing rows as ErrNotFound, unique-key collisions as
// ErrDuplicateKey, dangling withdrawal references as ErrHasDependentTransactions
// and every other failure wrapped in ErrStorage.
type Store interface {
	Reader

	// Atomic runs fn as one unit of work. If fn returns an error, none of its
	// writes persist. Materials locked inside fn stay locked until fn returns.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Reader serves queries outside of a unit of work. Results reflect some
// committed state; they may miss a mutation that commits concurrently.
type Reader interface {
	Material(ctx context.Context, id int64) (*materials.Material, error)
	MaterialByCode(ctx context.Context, code string) (*materials.Material, error)
	ListMaterials(ctx context.Context, f materials.Filter) ([]materials.Material, int, error)
	BelowThreshold(ctx context.Context, threshold decimal.Decimal) ([]materials.Material, error)
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]materials.Material, error)
	TakenBetween(ctx context.Context, start, end time.Time) ([]transactions.Taken, error)
	History(ctx context.Context, materialID int64) ([]transactions.Transaction, error)
	Archived(ctx context.Context) ([]archive.ArchivedMaterial, error)
}

// Tx is the view of the store inside one unit of work.
type Tx interface {
	Materials() MaterialWriter
	Transactions() TransactionLog
	Archive() ArchiveStore
}

type MaterialWriter interface {
	LockByID(ctx context.Context, id int64) (*materials.Material, error)
	LockByCode(ctx context.Context, code string) (*materials.Material, error)
	Create(ctx context.Context, m materials.Material) (*materials.Material, error)
	Save(ctx context.Context, m materials.Material) (*materials.Material, error)
	Delete(ctx context.Context, id int64) error
}

type TransactionLog interface {
	Append(ctx context.Context, materialID int64, qty decimal.Decimal, at time.Time) (*transactions.Transaction, error)
	ExistsForMaterial(ctx context.Context, materialID int64) (bool, error)
}

type ArchiveStore interface {
	Archive(ctx context.Context, m materials.Material, deletedAt time.Time) (*archive.ArchivedMaterial, error)
}
