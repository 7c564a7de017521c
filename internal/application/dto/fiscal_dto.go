package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountInput monto recibido del cliente. Acepta número JSON o string ("150.00")
// y se valida después, para que un valor no numérico se reporte como error de campo.
type AmountInput string

// UnmarshalJSON acepta 150, 150.5, "150.50" o null.
func (a *AmountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("monto inválido: %s", data)
	}
	*a = AmountInput(n.String())
	return nil
}

// Decimal convierte el monto ya validado.
func (a AmountInput) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(a))
}

// CreateInvoiceRequest body para POST /api/invoices.
// TotalValue se ignora: el total siempre se recalcula a partir de las líneas.
type CreateInvoiceRequest struct {
	Kind          string               `json:"kind" validate:"required,oneof=service goods"`
	CustomerName  string               `json:"customer_name" validate:"required"`
	CustomerTaxID string               `json:"customer_tax_id" validate:"required"`
	Items         []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	TotalValue    *decimal.Decimal     `json:"total_value,omitempty" swaggerignore:"true"`
}

// InvoiceItemRequest línea de la nota (descripción, cantidad, precio unitario).
// CFOP y NCM solo aplican a notas de mercadería (NF-e).
type InvoiceItemRequest struct {
	Description string      `json:"description" validate:"required"`
	Quantity    int         `json:"quantity" validate:"gt=0"`
	UnitPrice   AmountInput `json:"unit_price" validate:"required,nonneg_decimal,max_amount" swaggertype:"string" example:"150.00"`
	CFOP        string      `json:"cfop,omitempty" validate:"omitempty,numeric,len=4"`
	NCM         string      `json:"ncm,omitempty" validate:"omitempty,numeric,len=8"`
}

// InvoiceResponse nota fiscal para GET /api/invoices/:id.
type InvoiceResponse struct {
	ID                string                `json:"id"`
	Kind              string                `json:"kind"`
	CustomerName      string                `json:"customer_name"`
	CustomerTaxID     string                `json:"customer_tax_id"`
	Items             []InvoiceItemResponse `json:"items"`
	TotalValue        decimal.Decimal       `json:"total_value"`
	Status            string                `json:"status"` // pending|issued|failed
	DocumentNumber    string                `json:"document_number,omitempty"`
	Series            string                `json:"series,omitempty"`
	AccessKey         string                `json:"access_key,omitempty"`
	AuthorityProtocol string                `json:"authority_protocol,omitempty"`
	RenderedDocument  string                `json:"rendered_document,omitempty"`
	IssuedAt          string                `json:"issued_at,omitempty"`
	ErrorMessage      string                `json:"error_message,omitempty"`
	ReissueOf         string                `json:"reissue_of,omitempty"`
	CreatedAt         string                `json:"created_at"`
	UpdatedAt         string                `json:"updated_at"`
}

// InvoiceItemResponse línea en la respuesta.
type InvoiceItemResponse struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	CFOP        string          `json:"cfop,omitempty"`
	NCM         string          `json:"ncm,omitempty"`
}

// InvoiceListResponse página del listado de notas.
type InvoiceListResponse struct {
	Items []InvoiceResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// InvoiceSummaryResponse totales por estado para el panel fiscal.
type InvoiceSummaryResponse struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Issued  int `json:"issued"`
	Failed  int `json:"failed"`
}

// EmissionRequest body de POST /api/emitir-nota-fiscal.
type EmissionRequest struct {
	InvoiceID string `json:"invoiceId"`
}

// EmissionResponse sobre devuelto por el disparador de emisión.
// Success=false con HTTP 200 es un rechazo de la SEFAZ, no un fallo de transporte.
type EmissionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    EmissionData `json:"data"`
	Warning string       `json:"warning,omitempty"` // asiento del flujo de caja no registrado
}

// EmissionData campos del resultado de la emisión.
type EmissionData struct {
	InvoiceID         string          `json:"invoice_id"`
	Status            string          `json:"status"`
	DocumentNumber    string          `json:"document_number,omitempty"`
	Series            string          `json:"series,omitempty"`
	AccessKey         string          `json:"access_key,omitempty"`
	AuthorityProtocol string          `json:"authority_protocol,omitempty"`
	IssuedAt          string          `json:"issued_at,omitempty"`
	TotalValue        decimal.Decimal `json:"total_value"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	LedgerRecorded    bool            `json:"ledger_recorded"`
}

// LedgerBackfillResponse resultado de POST /api/ledger/backfill.
type LedgerBackfillResponse struct {
	Scanned int `json:"scanned"`
	Posted  int `json:"posted"`
}

// EmissionErrorResponse cuerpo de error del disparador de emisión (400/409/500).
type EmissionErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
