package archive

import (
	"context"
	"time"

	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/infra/db"
)

// Repo stores deleted materials for audit. It only ever inserts.
type Repo struct{ db db.DBTX }

func NewRepo(q db.DBTX) *Repo { return &Repo{db: q} }

func (r *Repo) Archive(ctx context.Context, m materials.Material, deletedAt time.Time) (*ArchivedMaterial, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO archived_materials
		(original_id, code, product_name, quantity, received_date, best_before_date, location, category, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, deleted_at
	`, m.ID, m.Code, m.ProductName, m.Quantity, m.ReceivedDate, m.BestBeforeDate, m.Location, m.Category, deletedAt)

	a := Snapshot(m, deletedAt)
	if err := row.Scan(&a.ID, &a.DeletedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAll returns archived records in insertion order.
func (r *Repo) ListAll(ctx context.Context) ([]ArchivedMaterial, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, original_id, code, product_name, quantity, received_date, best_before_date, location, category, deleted_at
		FROM archived_materials
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedMaterial
	for rows.Next() {
		var a ArchivedMaterial
		if err := rows.Scan(
			&a.ID, &a.OriginalID, &a.Code, &a.ProductName, &a.Quantity,
			&a.ReceivedDate, &a.BestBeforeDate, &a.Location, &a.Category, &a.DeletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
