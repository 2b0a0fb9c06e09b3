// Package memory keeps ledger state in process memory. It backs local runs
// without PostgreSQL and the ledger's unit tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/archive"
	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/domain/transactions"
	"github.com/Israelshecktar/IMS/internal/ledger"
)

type state struct {
	materials map[int64]materials.Material
	byCode    map[string]int64
	txs       []transactions.Transaction
	archived  []archive.ArchivedMaterial

	nextMaterialID int64
	nextTxID       int64
	nextArchiveID  int64
}

func (s *state) clone() *state {
	c := *s
	c.materials = maps.Clone(s.materials)
	c.byCode = maps.Clone(s.byCode)
	c.txs = slices.Clone(s.txs)
	c.archived = slices.Clone(s.archived)
	return &c
}

// Store serializes every unit of work behind one mutex. A unit works on a
// copy of the state that replaces the live state only when the unit succeeds.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: &state{
			materials: map[int64]materials.Material{},
			byCode:    map[string]int64{},
		},
		now: time.Now,
	}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrStorage, err)
	}
	work := s.st.clone()
	if err := fn(&unit{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read() (*state, func()) {
	s.mu.RLock()
	return s.st, s.mu.RUnlock
}

func (s *Store) Material(_ context.Context, id int64) (*materials.Material, error) {
	st, done := s.read()
	defer done()
	return st.byID(id)
}

func (s *Store) MaterialByCode(_ context.Context, code string) (*materials.Material, error) {
	st, done := s.read()
	defer done()
	return st.byCodeLookup(code)
}

func (s *Store) ListMaterials(_ context.Context, f materials.Filter) ([]materials.Material, int, error) {
	st, done := s.read()
	defer done()

	f = f.Normalize()
	match := func(v, sub string) bool {
		sub = strings.TrimSpace(sub)
		return sub == "" || strings.Contains(strings.ToLower(v), strings.ToLower(sub))
	}
	all := st.sorted(func(m materials.Material) bool {
		return match(m.Code, f.Code) && match(m.ProductName, f.ProductName) && match(m.Location, f.Location)
	})

	total := len(all)
	from := min(f.Offset(), total)
	to := min(from+f.PerPage, total)
	return all[from:to], total, nil
}

func (s *Store) BelowThreshold(_ context.Context, threshold decimal.Decimal) ([]materials.Material, error) {
	st, done := s.read()
	defer done()
	return st.sorted(func(m materials.Material) bool {
		return m.Quantity.LessThanOrEqual(threshold)
	}), nil
}

func (s *Store) ExpiringBefore(_ context.Context, cutoff time.Time) ([]materials.Material, error) {
	st, done := s.read()
	defer done()
	day := materials.DateOf(cutoff)
	return st.sorted(func(m materials.Material) bool {
		return !m.BestBeforeDate.After(day)
	}), nil
}

func (s *Store) TakenBetween(_ context.Context, start, end time.Time) ([]transactions.Taken, error) {
	st, done := s.read()
	defer done()

	var out []transactions.Taken
	for _, t := range st.txs {
		if t.TakenAt.Before(start) || t.TakenAt.After(end) {
			continue
		}
		m := st.materials[t.MaterialID]
		out = append(out, transactions.Taken{Transaction: t, MaterialCode: m.Code, ProductName: m.ProductName})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TakenAt.Equal(out[j].TakenAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].TakenAt.Before(out[j].TakenAt)
	})
	return out, nil
}

func (s *Store) History(_ context.Context, materialID int64) ([]transactions.Transaction, error) {
	st, done := s.read()
	defer done()

	var out []transactions.Transaction
	for _, t := range st.txs {
		if t.MaterialID == materialID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Archived(_ context.Context) ([]archive.ArchivedMaterial, error) {
	st, done := s.read()
	defer done()
	return slices.Clone(st.archived), nil
}

func (st *state) byID(id int64) (*materials.Material, error) {
	m, ok := st.materials[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ledger.ErrNotFound, id)
	}
	return &m, nil
}

func (st *state) byCodeLookup(code string) (*materials.Material, error) {
	id, ok := st.byCode[code]
	if !ok {
		return nil, fmt.Errorf("%w: code %q", ledger.ErrNotFound, code)
	}
	return st.byID(id)
}

// sorted returns the materials accepted by keep, ordered by id.
func (st *state) sorted(keep func(materials.Material) bool) []materials.Material {
	out := make([]materials.Material, 0, len(st.materials))
	for _, m := range st.materials {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
