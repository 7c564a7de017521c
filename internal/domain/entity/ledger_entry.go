package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Valores fijos de los asientos generados por la emisión de notas.
const (
	LedgerDirectionInflow  = "inflow"
	LedgerDirectionOutflow = "outflow"
	LedgerCategorySales    = "sales"
	LedgerSourceInvoice    = "invoice"
)

// LedgerEntry asiento del flujo de caja. Apunta a su origen por valor (SourceType + SourceID).
type LedgerEntry struct {
	ID          string
	Date        string // YYYY-MM-DD
	Direction   string
	Category    string
	Description string
	Amount      decimal.Decimal
	SourceID    string
	SourceType  string
	CreatedAt   time.Time
}

// NewLedgerEntryForInvoice deriva el asiento de entrada de una nota ya autorizada.
func NewLedgerEntryForInvoice(id string, inv *Invoice, now time.Time) *LedgerEntry {
	date := now
	if inv.Issuance != nil && !inv.Issuance.IssuedAt.IsZero() {
		date = inv.Issuance.IssuedAt
	}
	return &LedgerEntry{
		ID:          id,
		Date:        date.UTC().Format("2006-01-02"),
		Direction:   LedgerDirectionInflow,
		Category:    LedgerCategorySales,
		Description: "Nota Fiscal " + inv.Kind.Label() + " - " + inv.CustomerName,
		Amount:      inv.TotalValue,
		SourceID:    inv.ID,
		SourceType:  LedgerSourceInvoice,
		CreatedAt:   now,
	}
}
