package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/infra/logger"
	"github.com/Israelshecktar/IMS/internal/ledger"
	"github.com/Israelshecktar/IMS/internal/store/memory"
)

var clock = time.Date(2024, 6, 7, 10, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(memory.New(), logger.Discard(), ledger.WithClock(func() time.Time { return clock }))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func addInput(code, name, qty, location string) ledger.AddInput {
	return ledger.AddInput{
		Code:           code,
		ProductName:    name,
		Quantity:       dec(qty),
		ReceivedDate:   date(2024, 6, 1),
		BestBeforeDate: date(2025, 6, 1),
		Location:       location,
	}
}

func mustAdd(t *testing.T, l *ledger.Ledger, in ledger.AddInput) *materials.Material {
	t.Helper()
	m, err := l.AddOrMerge(context.Background(), in)
	if err != nil {
		t.Fatalf("AddOrMerge(%s): %v", in.Code, err)
	}
	return m
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	m := mustAdd(t, l, addInput("M1", "ProductA", "100", "W1"))
	if !m.Quantity.Equal(dec("100")) {
		t.Fatalf("quantity after add = %s", m.Quantity)
	}

	left, err := l.Withdraw(ctx, "M1", dec("30"))
	if err != nil {
		t.Fatalf("Withdraw 30: %v", err)
	}
	if !left.Equal(dec("70")) {
		t.Fatalf("remaining = %s, want 70", left)
	}
	hist, err := l.History(ctx, m.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || !hist[0].QuantityTaken.Equal(dec("30")) || !hist[0].TakenAt.Equal(clock) {
		t.Fatalf("history = %+v", hist)
	}

	if _, err := l.Withdraw(ctx, "M1", dec("80")); !errors.Is(err, ledger.ErrInsufficientStock) {
		t.Fatalf("Withdraw 80 err = %v, want ErrInsufficientStock", err)
	}
	cur, _ := l.GetByCode(ctx, "M1")
	if !cur.Quantity.Equal(dec("70")) {
		t.Fatalf("quantity after failed withdraw = %s", cur.Quantity)
	}
	if hist, _ := l.History(ctx, m.ID); len(hist) != 1 {
		t.Fatalf("failed withdraw logged a transaction: %+v", hist)
	}

	low, err := l.BelowThreshold(ctx, dec("75"))
	if err != nil {
		t.Fatalf("BelowThreshold: %v", err)
	}
	if len(low) != 1 || low[0].Code != "M1" {
		t.Fatalf("below 75 = %+v", low)
	}

	if _, err := l.Delete(ctx, m.ID); !errors.Is(err, ledger.ErrHasDependentTransactions) {
		t.Fatalf("Delete err = %v, want ErrHasDependentTransactions", err)
	}
	if _, err := l.Get(ctx, m.ID); err != nil {
		t.Fatalf("material gone after blocked delete: %v", err)
	}
}

func TestMergeSumsAndOverwrites(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	first := addInput("M1", "Old Name", "10.25", "W1")
	first.Category = "solvent"
	mustAdd(t, l, first)

	second := addInput("M1", "New Name", "5.5", "W2")
	second.ReceivedDate = date(2024, 6, 5)
	second.BestBeforeDate = date(2026, 1, 1)
	mustAdd(t, l, second)

	third := addInput("M1", "Newest Name", "0.25", "W3")
	third.ReceivedDate = date(2024, 6, 6)
	third.BestBeforeDate = date(2026, 2, 1)
	m := mustAdd(t, l, third)

	if !m.Quantity.Equal(dec("16")) {
		t.Errorf("quantity = %s, want 16", m.Quantity)
	}
	if m.ProductName != "Newest Name" || m.Location != "W3" {
		t.Errorf("descriptive fields not last-write: %+v", m)
	}
	if !m.ReceivedDate.Equal(date(2024, 6, 6)) || !m.BestBeforeDate.Equal(date(2026, 2, 1)) {
		t.Errorf("dates not last-write: %v %v", m.ReceivedDate, m.BestBeforeDate)
	}
	if m.Category != "solvent" {
		t.Errorf("empty category must not clear the stored one, got %q", m.Category)
	}

	_, total, err := l.List(ctx, materials.Filter{})
	if err != nil || total != 1 {
		t.Fatalf("List total = %d, err = %v", total, err)
	}
}

func TestAddValidation(t *testing.T) {
	l := newLedger(t)

	tests := []struct {
		name string
		edit func(*ledger.AddInput)
	}{
		{"zero quantity", func(in *ledger.AddInput) { in.Quantity = decimal.Zero }},
		{"negative quantity", func(in *ledger.AddInput) { in.Quantity = dec("-1") }},
		{"three decimals", func(in *ledger.AddInput) { in.Quantity = dec("1.005") }},
		{"too large", func(in *ledger.AddInput) { in.Quantity = dec("100000000") }},
		{"blank code", func(in *ledger.AddInput) { in.Code = "  " }},
		{"blank name", func(in *ledger.AddInput) { in.ProductName = "" }},
		{"missing received date", func(in *ledger.AddInput) { in.ReceivedDate = time.Time{} }},
		{"missing best before", func(in *ledger.AddInput) { in.BestBeforeDate = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := addInput("M1", "A", "1", "W1")
			tt.edit(&in)
			if _, err := l.AddOrMerge(context.Background(), in); !errors.Is(err, ledger.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestWithdrawErrors(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	mustAdd(t, l, addInput("M1", "A", "10", "W1"))

	tests := []struct {
		name string
		code string
		qty  string
		want error
	}{
		{"zero", "M1", "0", ledger.ErrInvalidInput},
		{"negative", "M1", "-2", ledger.ErrInvalidInput},
		{"unknown code", "M9", "1", ledger.ErrNotFound},
		{"blank code", "", "1", ledger.ErrInvalidInput},
		{"too much", "M1", "10.01", ledger.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Withdraw(ctx, tt.code, dec(tt.qty)); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	left, err := l.Withdraw(ctx, "M1", dec("10"))
	if err != nil || !left.IsZero() {
		t.Fatalf("withdrawing everything: left=%s err=%v", left, err)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	m1 := mustAdd(t, l, addInput("M1", "A", "10", "W1"))
	mustAdd(t, l, addInput("M2", "B", "10", "W1"))

	qty := dec("0")
	name := "Renamed"
	got, err := l.Update(ctx, m1.ID, ledger.UpdateInput{ProductName: &name, Quantity: &qty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ProductName != "Renamed" || !got.Quantity.IsZero() || got.Code != "M1" {
		t.Fatalf("updated = %+v", got)
	}

	taken := "M2"
	if _, err := l.Update(ctx, m1.ID, ledger.UpdateInput{Code: &taken}); !errors.Is(err, ledger.ErrDuplicateKey) {
		t.Fatalf("code collision err = %v, want ErrDuplicateKey", err)
	}

	neg := dec("-1")
	blank := " "
	for name, in := range map[string]ledger.UpdateInput{
		"negative quantity": {Quantity: &neg},
		"blank name":        {ProductName: &blank},
		"blank code":        {Code: &blank},
		"nothing":           {},
	} {
		if _, err := l.Update(ctx, m1.ID, in); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}

	if _, err := l.Update(ctx, 999, ledger.UpdateInput{ProductName: &name}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("unknown id err = %v, want ErrNotFound", err)
	}

	renamed := "M1-B"
	if _, err := l.Update(ctx, m1.ID, ledger.UpdateInput{Code: &renamed}); err != nil {
		t.Fatalf("rename code: %v", err)
	}
	if _, err := l.GetByCode(ctx, "M1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("old code still resolves: %v", err)
	}
}

func TestDeleteArchives(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	in := addInput("M1", "A", "20", "W1")
	in.Category = "oil"
	before := mustAdd(t, l, in)

	a, err := l.Delete(ctx, before.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if a.OriginalID != before.ID || a.Code != before.Code || a.ProductName != before.ProductName ||
		!a.Quantity.Equal(before.Quantity) || a.Location != before.Location || a.Category != before.Category ||
		!a.ReceivedDate.Equal(before.ReceivedDate) || !a.BestBeforeDate.Equal(before.BestBeforeDate) {
		t.Errorf("snapshot %+v does not match %+v", a, before)
	}
	if !a.DeletedAt.Equal(clock) {
		t.Errorf("deleted at = %v", a.DeletedAt)
	}

	if low, _ := l.BelowThreshold(ctx, dec("1000")); len(low) != 0 {
		t.Errorf("deleted material still below threshold: %+v", low)
	}
	if exp, _ := l.ExpiringBefore(ctx, date(2100, 1, 1)); len(exp) != 0 {
		t.Errorf("deleted material still expiring: %+v", exp)
	}
	if _, err := l.Withdraw(ctx, "M1", dec("1")); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("withdraw after delete err = %v", err)
	}
	qty := dec("1")
	if _, err := l.Update(ctx, before.ID, ledger.UpdateInput{Quantity: &qty}); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("update after delete err = %v", err)
	}
	if _, err := l.Delete(ctx, before.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}

	archived, err := l.Archived(ctx)
	if err != nil || len(archived) != 1 {
		t.Fatalf("Archived = %+v, err = %v", archived, err)
	}

	// the code is free again
	again := mustAdd(t, l, addInput("M1", "A", "5", "W1"))
	if again.ID == before.ID {
		t.Errorf("reused id %d", again.ID)
	}
}

func TestQueriesOrderedByID(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	for _, c := range []struct {
		code, qty string
		bb        time.Time
	}{
		{"C", "50", date(2024, 9, 5)},
		{"A", "50.01", date(2024, 9, 6)},
		{"B", "0", date(2024, 1, 1)},
	} {
		in := addInput(c.code, "P", "1", "W1")
		in.BestBeforeDate = c.bb
		m := mustAdd(t, l, in)
		q := dec(c.qty)
		if _, err := l.Update(ctx, m.ID, ledger.UpdateInput{Quantity: &q}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	low, err := l.BelowThreshold(ctx, dec("50"))
	if err != nil {
		t.Fatalf("BelowThreshold: %v", err)
	}
	if len(low) != 2 || low[0].Code != "C" || low[1].Code != "B" {
		t.Errorf("below 50 = %v", codes(low))
	}

	// cutoff late in the day still compares by calendar date
	exp, err := l.ExpiringBefore(ctx, time.Date(2024, 9, 5, 23, 59, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ExpiringBefore: %v", err)
	}
	if len(exp) != 2 || exp[0].Code != "C" || exp[1].Code != "B" {
		t.Errorf("expiring = %v", codes(exp))
	}

	if _, err := l.BelowThreshold(ctx, dec("-1")); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("negative threshold err = %v", err)
	}
	if _, err := l.ExpiringBefore(ctx, time.Time{}); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("zero cutoff err = %v", err)
	}
}

func codes(ms []materials.Material) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Code
	}
	return out
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	m := mustAdd(t, l, addInput("M1", "A", "100", "W1"))

	const workers = 40 // 40 * 3 L against 100 L
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Withdraw(ctx, "M1", dec("3"))
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case !errors.Is(err, ledger.ErrInsufficientStock):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	cur, err := l.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cur.Quantity.IsNegative() {
		t.Fatalf("quantity went negative: %s", cur.Quantity)
	}
	if succeeded != 33 {
		t.Errorf("succeeded = %d, want 33", succeeded)
	}
	hist, _ := l.History(ctx, m.ID)
	if len(hist) != succeeded {
		t.Errorf("transactions = %d, successful withdrawals = %d", len(hist), succeeded)
	}
	if want := dec("100").Sub(dec("3").Mul(decimal.NewFromInt(int64(succeeded)))); !cur.Quantity.Equal(want) {
		t.Errorf("quantity = %s, want %s", cur.Quantity, want)
	}
}

func TestTakenBetween(t *testing.T) {
	ctx := context.Background()
	now := clock
	l := ledger.New(memory.New(), logger.Discard(), ledger.WithClock(func() time.Time { return now }))
	mustAdd(t, l, addInput("M1", "Product A", "100", "W1"))

	for _, at := range []time.Time{date(2024, 6, 1), date(2024, 6, 3), date(2024, 6, 5)} {
		now = at
		if _, err := l.Withdraw(ctx, "M1", dec("1")); err != nil {
			t.Fatalf("Withdraw: %v", err)
		}
	}

	got, err := l.TakenBetween(ctx, date(2024, 6, 1), date(2024, 6, 3))
	if err != nil {
		t.Fatalf("TakenBetween: %v", err)
	}
	if len(got) != 2 || got[0].ProductName != "Product A" || got[0].MaterialCode != "M1" || !got[0].TakenAt.Before(got[1].TakenAt) {
		t.Fatalf("taken = %+v", got)
	}

	if _, err := l.TakenBetween(ctx, date(2024, 6, 3), date(2024, 6, 1)); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("reversed range err = %v", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ledger.ErrInvalidInput, "invalid_input"},
		{ledger.ErrNotFound, "not_found"},
		{ledger.ErrInsufficientStock, "insufficient_stock"},
		{ledger.ErrDuplicateKey, "duplicate_key"},
		{ledger.ErrHasDependentTransactions, "has_transactions"},
		{ledger.ErrStorage, "storage_error"},
		{errors.New("boom"), "storage_error"},
	}
	for _, tt := range tests {
		if got := ledger.Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type recorder struct {
	mu   sync.Mutex
	seen map[string]int
}

func (r *recorder) ObserveOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[op+"/"+outcome]++
}

func TestRecorderSeesOutcomes(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{seen: map[string]int{}}
	l := ledger.New(memory.New(), logger.Discard(), ledger.WithRecorder(rec))

	mustAdd(t, l, addInput("M1", "A", "1", "W1"))
	_, _ = l.Withdraw(ctx, "M1", dec("2"))
	_, _ = l.Delete(ctx, 42)

	for _, key := range []string{"add/ok", "withdraw/insufficient_stock", "delete/not_found"} {
		if rec.seen[key] != 1 {
			t.Errorf("%s observed %d times, want 1 (all: %v)", key, rec.seen[key], rec.seen)
		}
	}
}
