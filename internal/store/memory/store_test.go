package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/ledger"
)

func material(code, name, location string) materials.Material {
	return materials.Material{
		Code:           code,
		ProductName:    name,
		Quantity:       decimal.NewFromInt(10),
		ReceivedDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		BestBeforeDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Location:       location,
	}
}

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(tx ledger.Tx) error {
		m, err := tx.Materials().Create(ctx, material("M1", "A", "W1"))
		if err != nil {
			return err
		}
		if _, err := tx.Transactions().Append(ctx, m.ID, decimal.NewFromInt(1), time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic err = %v", err)
	}
	if _, err := s.MaterialByCode(ctx, "M1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("write survived a failed unit: %v", err)
	}
	if ts, _ := s.TakenBetween(ctx, time.Time{}, time.Now().Add(time.Hour)); len(ts) != 0 {
		t.Fatalf("transaction survived a failed unit: %+v", ts)
	}
}

func TestAtomicHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().Atomic(ctx, func(ledger.Tx) error { called = true; return nil })
	if !errors.Is(err, ledger.ErrStorage) || !errors.Is(err, context.Canceled) || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}

func TestUniqueCodeAndDeleteGuard(t *testing.T) {
	ctx := context.Background()
	s := New()

	var id int64
	err := s.Atomic(ctx, func(tx ledger.Tx) error {
		m, err := tx.Materials().Create(ctx, material("M1", "A", "W1"))
		if err != nil {
			return err
		}
		id = m.ID
		_, err = tx.Materials().Create(ctx, material("M1", "B", "W1"))
		return err
	})
	if !errors.Is(err, ledger.ErrDuplicateKey) {
		t.Fatalf("duplicate create err = %v", err)
	}

	err = s.Atomic(ctx, func(tx ledger.Tx) error {
		m, err := tx.Materials().Create(ctx, material("M1", "A", "W1"))
		if err != nil {
			return err
		}
		id = m.ID
		_, err = tx.Transactions().Append(ctx, m.ID, decimal.NewFromInt(1), time.Now())
		return err
	})
	if err != nil {
		t.Fatalf("create with history: %v", err)
	}

	err = s.Atomic(ctx, func(tx ledger.Tx) error { return tx.Materials().Delete(ctx, id) })
	if !errors.Is(err, ledger.ErrHasDependentTransactions) {
		t.Fatalf("delete err = %v", err)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Atomic(ctx, func(tx ledger.Tx) error {
		for _, m := range []materials.Material{
			material("OIL-1", "Engine Oil", "Warehouse North"),
			material("OIL-2", "Gear Oil", "Warehouse South"),
			material("SOL-1", "Solvent", "Warehouse North"),
		} {
			if _, err := tx.Materials().Create(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name  string
		f     materials.Filter
		codes []string
		total int
	}{
		{"all", materials.Filter{}, []string{"OIL-1", "OIL-2", "SOL-1"}, 3},
		{"name is case-insensitive", materials.Filter{ProductName: "oil"}, []string{"OIL-1", "OIL-2"}, 2},
		{"location", materials.Filter{Location: "north"}, []string{"OIL-1", "SOL-1"}, 2},
		{"code and location", materials.Filter{Code: "oil", Location: "south"}, []string{"OIL-2"}, 1},
		{"second page", materials.Filter{Page: 2, PerPage: 2}, []string{"SOL-1"}, 3},
		{"past the end", materials.Filter{Page: 5, PerPage: 2}, []string{}, 3},
		{"huge page is clamped", materials.Filter{Page: math.MaxInt}, []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := s.ListMaterials(ctx, tt.f)
			if err != nil {
				t.Fatalf("ListMaterials: %v", err)
			}
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
			if len(got) != len(tt.codes) {
				t.Fatalf("got %d rows, want %v", len(got), tt.codes)
			}
			for i, m := range got {
				if m.Code != tt.codes[i] {
					t.Errorf("row %d = %s, want %s", i, m.Code, tt.codes[i])
				}
			}
		})
	}
}
