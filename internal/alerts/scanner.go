// Package alerts scans the ledger for low and expiring stock and forwards
// the findings to a notifier.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/materials"
)

const (
	DefaultThreshold    = 50
	DefaultExpiryWindow = 90 * 24 * time.Hour

	KindLowStock = "low_stock"
	KindExpiring = "expiring"
)

// Source is the read side of the ledger the scanner depends on.
type Source interface {
	BelowThreshold(ctx context.Context, threshold decimal.Decimal) ([]materials.Material, error)
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]materials.Material, error)
}

type Attachment struct {
	Name string
	Data []byte
}

type Notification struct {
	Subject    string
	Recipient  int64
	Body       string
	Attachment *Attachment
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ReportBuilder renders a single-sheet xlsx workbook.
type ReportBuilder interface {
	Build(sheet string, header []string, rows [][]any) ([]byte, error)
}

// Recorder receives scan and delivery observations.
type Recorder interface {
	ObserveScan(lowStock, expiring int, err error)
	ObserveDelivery(kind string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveScan(int, int, error)   {}
func (nopRecorder) ObserveDelivery(string, error) {}

// RowsFunc turns materials into report rows under Header.
type RowsFunc func([]materials.Material) [][]any

// Config tunes a Scanner. A zero ExpiryWindow means DefaultExpiryWindow.
type Config struct {
	Threshold    decimal.Decimal
	ExpiryWindow time.Duration
	Recipient    int64
	Header       []string
	Rows         RowsFunc
}

type Scanner struct {
	src      Source
	notifier Notifier
	reports  ReportBuilder
	rec      Recorder
	log      *slog.Logger
	cfg      Config
}

type Delivery struct {
	Kind  string
	Count int
	Err   error
}

// Result describes one scan. Deliveries lists only the non-empty sets.
type Result struct {
	RunID      string
	At         time.Time
	Cutoff     time.Time
	LowStock   []materials.Material
	Expiring   []materials.Material
	Deliveries []Delivery
}

func NewScanner(src Source, notifier Notifier, reports ReportBuilder, rec Recorder, log *slog.Logger, cfg Config) *Scanner {
	if cfg.Threshold.IsZero() {
		cfg.Threshold = decimal.NewFromInt(DefaultThreshold)
	}
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = DefaultExpiryWindow
	}
	if cfg.Rows == nil {
		cfg.Rows = plainRows
	}
	if len(cfg.Header) == 0 {
		cfg.Header = plainHeader
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Scanner{src: src, notifier: notifier, reports: reports, rec: rec, log: log, cfg: cfg}
}

// Run reads both alert sets as of now and notifies for each non-empty set.
// Only a ledger read failure fails the scan; report and delivery failures
// are logged and returned in Result.Deliveries.
func (s *Scanner) Run(ctx context.Context, now time.Time) (res Result, err error) {
	res = Result{RunID: uuid.NewString(), At: now, Cutoff: now.Add(s.cfg.ExpiryWindow)}
	log := s.log.With("run_id", res.RunID)
	defer func() { s.rec.ObserveScan(len(res.LowStock), len(res.Expiring), err) }()

	if res.LowStock, err = s.src.BelowThreshold(ctx, s.cfg.Threshold); err != nil {
		log.Error("alert scan: low stock query failed", "err", err)
		return res, fmt.Errorf("low stock: %w", err)
	}
	if res.Expiring, err = s.src.ExpiringBefore(ctx, res.Cutoff); err != nil {
		log.Error("alert scan: expiry query failed", "err", err)
		return res, fmt.Errorf("expiring: %w", err)
	}

	if len(res.LowStock) > 0 {
		res.Deliveries = append(res.Deliveries, s.deliver(ctx, log, KindLowStock, now, res.LowStock))
	}
	if len(res.Expiring) > 0 {
		res.Deliveries = append(res.Deliveries, s.deliver(ctx, log, KindExpiring, now, res.Expiring))
	}

	log.Info("alert scan finished",
		"low_stock", len(res.LowStock),
		"expiring", len(res.Expiring),
		"threshold", s.cfg.Threshold.String(),
		"cutoff", res.Cutoff.Format(materials.DateLayout))
	return res, nil
}

func (s *Scanner) deliver(ctx context.Context, log *slog.Logger, kind string, now time.Time, ms []materials.Material) Delivery {
	d := Delivery{Kind: kind, Count: len(ms)}
	n := s.compose(kind, ms)

	data, err := s.reports.Build(sheetName(kind), s.cfg.Header, s.cfg.Rows(ms))
	if err != nil {
		d.Err = fmt.Errorf("build report: %w", err)
	} else {
		n.Attachment = &Attachment{
			Name: fmt.Sprintf("%s_%s.xlsx", kind, now.Format("20060102_150405")),
			Data: data,
		}
		d.Err = s.notifier.Notify(ctx, n)
	}

	s.rec.ObserveDelivery(kind, d.Err)
	if d.Err != nil {
		log.Error("alert delivery failed", "kind", kind, "count", len(ms), "err", d.Err)
	}
	return d
}

func (s *Scanner) compose(kind string, ms []materials.Material) Notification {
	var (
		subject string
		intro   string
	)
	switch kind {
	case KindLowStock:
		subject = "Low Inventory Alert"
		intro = fmt.Sprintf("The following products are below the %s liters threshold. Please find the attached report for details.", s.cfg.Threshold.String())
	default:
		subject = "Expiration Notice"
		intro = fmt.Sprintf("The following products are expiring within the next %s. Please find the attached report for details.", windowText(s.cfg.ExpiryWindow))
	}

	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n")
	for _, m := range ms {
		switch kind {
		case KindLowStock:
			fmt.Fprintf(&b, "\n- %s %s: %s L", m.Code, m.ProductName, m.Quantity.StringFixed(2))
		default:
			fmt.Fprintf(&b, "\n- %s %s: best before %s", m.Code, m.ProductName, m.BestBeforeDate.Format(materials.DateLayout))
		}
	}
	return Notification{Subject: subject, Recipient: s.cfg.Recipient, Body: b.String()}
}

func sheetName(kind string) string {
	if kind == KindLowStock {
		return "Low Stock"
	}
	return "Expiring Soon"
}

func windowText(w time.Duration) string {
	days := int(w / (24 * time.Hour))
	switch {
	case days == 90:
		return "3 months"
	case days == 1:
		return "1 day"
	case days > 0:
		return fmt.Sprintf("%d days", days)
	}
	return w.String()
}

var plainHeader = []string{"ID", "Material Code", "Product Name", "Quantity", "Best Before Date"}

func plainRows(ms []materials.Material) [][]any {
	out := make([][]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, []any{m.ID, m.Code, m.ProductName, m.Quantity.StringFixed(2), m.BestBeforeDate.Format(materials.DateLayout)})
	}
	return out
}
