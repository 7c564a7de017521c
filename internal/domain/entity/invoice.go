package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/shopspring/decimal"
)

// InvoiceKind tipo de nota fiscal.
type InvoiceKind string

const (
	InvoiceKindService InvoiceKind = "service" // NFS-e: ruta tributaria simplificada
	InvoiceKindGoods   InvoiceKind = "goods"   // NF-e: lleva CFOP/NCM por línea
)

// Valid indica si el tipo es conocido.
func (k InvoiceKind) Valid() bool {
	return k == InvoiceKindService || k == InvoiceKindGoods
}

// Label nombre corto del documento fiscal (NFS-e / NF-e).
func (k InvoiceKind) Label() string {
	if k == InvoiceKindGoods {
		return "NF-e"
	}
	return "NFS-e"
}

// InvoiceStatus estado de emisión frente a la SEFAZ.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending" // guardada, aún no enviada
	InvoiceStatusIssued  InvoiceStatus = "issued"  // autorizada por la SEFAZ
	InvoiceStatusFailed  InvoiceStatus = "failed"  // rechazada o error de comunicación
)

// Valid indica si el estado es conocido.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusIssued, InvoiceStatusFailed:
		return true
	}
	return false
}

// Terminal es verdadero para issued y failed.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusIssued || s == InvoiceStatusFailed
}

// LineItem línea de la nota fiscal.
type LineItem struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	CFOP        string // solo NF-e (4 dígitos)
	NCM         string // solo NF-e (8 dígitos)
}

// Subtotal cantidad × precio unitario.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Issuance datos devueltos por la autoridad al autorizar el documento.
type Issuance struct {
	DocumentNumber    string // nNF, 6 dígitos
	Series            string
	AccessKey         string // chave de acesso, 44 dígitos
	AuthorityProtocol string
	RenderedDocument  string // XML del documento autorizado
	IssuedAt          time.Time
}

// Complete verifica que los cuatro identificadores obligatorios estén presentes.
func (i Issuance) Complete() bool {
	return i.DocumentNumber != "" && i.Series != "" && i.AccessKey != "" && i.AuthorityProtocol != ""
}

// Invoice solicitud de nota fiscal (unidad de trabajo persistida).
type Invoice struct {
	ID            string
	Kind          InvoiceKind
	CustomerName  string
	CustomerTaxID string
	Items         []LineItem
	TotalValue    decimal.Decimal
	Status        InvoiceStatus
	Issuance      *Issuance // solo en issued
	ErrorMessage  string    // solo en failed
	ReissueOf     string    // ID de la nota fallida que esta reemite (opcional)
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ComputeTotal suma cantidad × precio de cada línea, redondeado a 2 decimales.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2)
}

// NewPendingInvoice arma una nota en estado pending con el total recalculado.
func NewPendingInvoice(id string, kind InvoiceKind, customerName, customerTaxID string, items []LineItem, now time.Time) *Invoice {
	copied := make([]LineItem, len(items))
	copy(copied, items)
	return &Invoice{
		ID:            id,
		Kind:          kind,
		CustomerName:  customerName,
		CustomerTaxID: customerTaxID,
		Items:         copied,
		TotalValue:    ComputeTotal(copied),
		Status:        InvoiceStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkIssued transición pending -> issued.
func (inv *Invoice) MarkIssued(iss Issuance, total decimal.Decimal) error {
	if inv.Status != InvoiceStatusPending {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, inv.Status, InvoiceStatusIssued)
	}
	if !iss.Complete() {
		return fmt.Errorf("%w: datos de autorización incompletos", domain.ErrInvalidInput)
	}
	if iss.IssuedAt.IsZero() {
		return fmt.Errorf("%w: fecha de emisión vacía", domain.ErrInvalidInput)
	}
	issued := iss
	inv.Status = InvoiceStatusIssued
	inv.Issuance = &issued
	inv.ErrorMessage = ""
	inv.TotalValue = total
	inv.UpdatedAt = iss.IssuedAt
	return nil
}

// MarkFailed transición pending -> failed.
func (inv *Invoice) MarkFailed(message string, at time.Time) error {
	if inv.Status != InvoiceStatusPending {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, inv.Status, InvoiceStatusFailed)
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: mensaje de error vacío", domain.ErrInvalidInput)
	}
	inv.Status = InvoiceStatusFailed
	inv.Issuance = nil
	inv.ErrorMessage = message
	inv.UpdatedAt = at
	return nil
}

// CheckInvariants valida la exclusividad entre datos de autorización y mensaje de error.
func (inv *Invoice) CheckInvariants() error {
	switch inv.Status {
	case InvoiceStatusPending:
		if inv.Issuance != nil || inv.ErrorMessage != "" {
			return fmt.Errorf("nota %s pending con datos de resultado", inv.ID)
		}
	case InvoiceStatusIssued:
		if inv.Issuance == nil || !inv.Issuance.Complete() || inv.ErrorMessage != "" {
			return fmt.Errorf("nota %s issued sin autorización completa o con error", inv.ID)
		}
	case InvoiceStatusFailed:
		if inv.ErrorMessage == "" || inv.Issuance != nil {
			return fmt.Errorf("nota %s failed sin mensaje o con autorización", inv.ID)
		}
	default:
		return fmt.Errorf("nota %s con estado desconocido %q", inv.ID, inv.Status)
	}
	if !inv.TotalValue.Equal(ComputeTotal(inv.Items)) {
		return fmt.Errorf("nota %s: total %s distinto de la suma de líneas", inv.ID, inv.TotalValue)
	}
	return nil
}

// Clone copia profunda (líneas y autorización incluidas).
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	out.Items = make([]LineItem, len(inv.Items))
	copy(out.Items, inv.Items)
	if inv.Issuance != nil {
		iss := *inv.Issuance
		out.Issuance = &iss
	}
	return &out
}
