// Package report renders ledger results as xlsx workbooks.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Israelshecktar/IMS/internal/domain/archive"
	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/domain/transactions"
	"github.com/Israelshecktar/IMS/internal/domain/users"
)

const timestampLayout = "2006-01-02 15:04:05"

var (
	MaterialHeader = []string{"ID", "Material Code", "Product Name", "Quantity (L)", "Received Date", "Best Before Date", "Location", "Category"}
	TakenHeader    = []string{"ID", "Material Code", "Product Name", "Quantity Taken (L)", "Taken At"}
	UserHeader     = []string{"Telegram ID", "Username", "Role"}
	ArchiveHeader  = []string{"ID", "Original ID", "Material Code", "Product Name", "Quantity (L)", "Received Date", "Best Before Date", "Location", "Category", "Deleted At"}
)

type Excel struct{}

func NewExcel() Excel { return Excel{} }

// Build writes header and rows into a single sheet and returns the workbook bytes.
func (Excel) Build(sheet string, header []string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	def := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet != "" && sheet != def {
		if err := f.SetSheetName(def, sheet); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		def = sheet
	}

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(def, "A1", &head); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(def, cell, &r); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Quantities are written as text so that the two-decimal value is kept as is.
func MaterialRows(ms []materials.Material) [][]any {
	out := make([][]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, []any{
			m.ID,
			m.Code,
			m.ProductName,
			m.Quantity.StringFixed(2),
			m.ReceivedDate.Format(materials.DateLayout),
			m.BestBeforeDate.Format(materials.DateLayout),
			m.Location,
			m.Category,
		})
	}
	return out
}

func TakenRows(ts []transactions.Taken) [][]any {
	out := make([][]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, []any{
			t.ID,
			t.MaterialCode,
			t.ProductName,
			t.QuantityTaken.StringFixed(2),
			t.TakenAt.Format(timestampLayout),
		})
	}
	return out
}

func ArchiveRows(as []archive.ArchivedMaterial) [][]any {
	out := make([][]any, 0, len(as))
	for _, a := range as {
		out = append(out, []any{
			a.ID,
			a.OriginalID,
			a.Code,
			a.ProductName,
			a.Quantity.StringFixed(2),
			a.ReceivedDate.Format(materials.DateLayout),
			a.BestBeforeDate.Format(materials.DateLayout),
			a.Location,
			a.Category,
			a.DeletedAt.Format(timestampLayout),
		})
	}
	return out
}

func UserRows(us []users.User) [][]any {
	out := make([][]any, 0, len(us))
	for _, u := range us {
		out = append(out, []any{u.TelegramID, u.Username, string(u.Role)})
	}
	return out
}
