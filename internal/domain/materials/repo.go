package materials

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/infra/db"
)

type Repo struct{ db db.DBTX }

func NewRepo(q db.DBTX) *Repo { return &Repo{db: q} }

const columns = `id, code, product_name, quantity, received_date, best_before_date, location, category, created_at, updated_at`

func scan(row pgx.Row) (*Material, error) {
	var m Material
	if err := row.Scan(
		&m.ID,
		&m.Code,
		&m.ProductName,
		&m.Quantity,
		&m.ReceivedDate,
		&m.BestBeforeDate,
		&m.Location,
		&m.Category,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func collect(rows pgx.Rows) ([]Material, error) {
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Create inserts a new material. A colliding code fails with a unique violation.
func (r *Repo) Create(ctx context.Context, m Material) (*Material, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO materials (code, product_name, quantity, received_date, best_before_date, location, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+columns,
		m.Code, m.ProductName, m.Quantity, m.ReceivedDate, m.BestBeforeDate, m.Location, m.Category)
	return scan(row)
}

// Save overwrites every mutable column of the row with id m.ID.
func (r *Repo) Save(ctx context.Context, m Material) (*Material, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE materials
		SET code=$2, product_name=$3, quantity=$4, received_date=$5, best_before_date=$6,
		    location=$7, category=$8, updated_at=now()
		WHERE id=$1
		RETURNING `+columns,
		m.ID, m.Code, m.ProductName, m.Quantity, m.ReceivedDate, m.BestBeforeDate, m.Location, m.Category)
	return scan(row)
}

// Delete removes the row; reports pgx.ErrNoRows when nothing matched.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM materials WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Material, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM materials WHERE id=$1`, id))
}

func (r *Repo) GetByCode(ctx context.Context, code string) (*Material, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM materials WHERE code=$1`, code))
}

// LockByID reads the row and holds a row lock until the surrounding transaction ends.
func (r *Repo) LockByID(ctx context.Context, id int64) (*Material, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM materials WHERE id=$1 FOR UPDATE`, id))
}

func (r *Repo) LockByCode(ctx context.Context, code string) (*Material, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM materials WHERE code=$1 FOR UPDATE`, code))
}

// BelowThreshold lists materials with quantity <= threshold.
func (r *Repo) BelowThreshold(ctx context.Context, threshold decimal.Decimal) ([]Material, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM materials
		WHERE quantity <= $1
		ORDER BY id
	`, threshold)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ExpiringBefore lists materials whose best-before date is on or before cutoff.
func (r *Repo) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]Material, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM materials
		WHERE best_before_date <= $1::date
		ORDER BY id
	`, DateOf(cutoff))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// List returns one page of materials matching f and the total number of matches.
func (r *Repo) List(ctx context.Context, f Filter) ([]Material, int, error) {
	f = f.Normalize()

	var (
		where []string
		args  []any
	)
	like := func(col, v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		args = append(args, "%"+v+"%")
		where = append(where, col+" ILIKE $"+strconv.Itoa(len(args)))
	}
	like("code", f.Code)
	like("product_name", f.ProductName)
	like("location", f.Location)

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM materials`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, f.Offset())
	q := `SELECT ` + columns + ` FROM materials` + cond +
		` ORDER BY id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(rows)
	return out, total, err
}
