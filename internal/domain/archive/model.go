package archive

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/domain/materials"
)

// ArchivedMaterial is the snapshot of a material taken when it was deleted.
type ArchivedMaterial struct {
	ID             int64
	OriginalID     int64
	Code           string
	ProductName    string
	Quantity       decimal.Decimal
	ReceivedDate   time.Time
	BestBeforeDate time.Time
	Location       string
	Category       string
	DeletedAt      time.Time
}

// Snapshot copies every field of m. ID is left for the store to assign.
func Snapshot(m materials.Material, deletedAt time.Time) ArchivedMaterial {
	return ArchivedMaterial{
		OriginalID:     m.ID,
		Code:           m.Code,
		ProductName:    m.ProductName,
		Quantity:       m.Quantity,
		ReceivedDate:   m.ReceivedDate,
		BestBeforeDate: m.BestBeforeDate,
		Location:       m.Location,
		Category:       m.Category,
		DeletedAt:      deletedAt,
	}
}
