package transactions

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/infra/db"
)

// Repo is the append-only withdrawal log. Rows are never updated or deleted.
type Repo struct{ db db.DBTX }

func NewRepo(q db.DBTX) *Repo { return &Repo{db: q} }

// Append records one withdrawal. Call it inside the transaction that decrements the stock.
func (r *Repo) Append(ctx context.Context, materialID int64, qty decimal.Decimal, at time.Time) (*Transaction, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO material_transactions (material_id, quantity_taken, taken_at)
		VALUES ($1,$2,$3)
		RETURNING id, material_id, quantity_taken, taken_at
	`, materialID, qty, at)

	var t Transaction
	if err := row.Scan(&t.ID, &t.MaterialID, &t.QuantityTaken, &t.TakenAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) ExistsForMaterial(ctx context.Context, materialID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM material_transactions WHERE material_id = $1)
	`, materialID).Scan(&ok)
	return ok, err
}

// ByDateRange returns withdrawals with start <= taken_at <= end, oldest first.
func (r *Repo) ByDateRange(ctx context.Context, start, end time.Time) ([]Taken, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.material_id, t.quantity_taken, t.taken_at, m.code, m.product_name
		FROM material_transactions t
		JOIN materials m ON m.id = t.material_id
		WHERE t.taken_at >= $1 AND t.taken_at <= $2
		ORDER BY t.taken_at, t.id
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Taken
	for rows.Next() {
		var it Taken
		if err := rows.Scan(&it.ID, &it.MaterialID, &it.QuantityTaken, &it.TakenAt, &it.MaterialCode, &it.ProductName); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ForMaterial returns the withdrawal history of one material, oldest first.
func (r *Repo) ForMaterial(ctx context.Context, materialID int64) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, material_id, quantity_taken, taken_at
		FROM material_transactions
		WHERE material_id = $1
		ORDER BY taken_at, id
	`, materialID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		var t Transaction
		err := row.Scan(&t.ID, &t.MaterialID, &t.QuantityTaken, &t.TakenAt)
		return t, err
	})
}
