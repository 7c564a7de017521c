package fiscal

import (
	"time"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toInvoiceResponse(inv *entity.Invoice) *dto.InvoiceResponse {
	items := make([]dto.InvoiceItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, dto.InvoiceItemResponse{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal(),
			CFOP:        it.CFOP,
			NCM:         it.NCM,
		})
	}
	out := &dto.InvoiceResponse{
		ID:            inv.ID,
		Kind:          string(inv.Kind),
		CustomerName:  inv.CustomerName,
		CustomerTaxID: inv.CustomerTaxID,
		Items:         items,
		TotalValue:    inv.TotalValue,
		Status:        string(inv.Status),
		ErrorMessage:  inv.ErrorMessage,
		ReissueOf:     inv.ReissueOf,
		CreatedAt:     formatTime(inv.CreatedAt),
		UpdatedAt:     formatTime(inv.UpdatedAt),
	}
	if iss := inv.Issuance; iss != nil {
		out.DocumentNumber = iss.DocumentNumber
		out.Series = iss.Series
		out.AccessKey = iss.AccessKey
		out.AuthorityProtocol = iss.AuthorityProtocol
		out.RenderedDocument = iss.RenderedDocument
		out.IssuedAt = formatTime(iss.IssuedAt)
	}
	return out
}

func toEmissionData(inv *entity.Invoice, ledgerRecorded bool) dto.EmissionData {
	data := dto.EmissionData{
		InvoiceID:      inv.ID,
		Status:         string(inv.Status),
		TotalValue:     inv.TotalValue,
		ErrorMessage:   inv.ErrorMessage,
		LedgerRecorded: ledgerRecorded,
	}
	if iss := inv.Issuance; iss != nil {
		data.DocumentNumber = iss.DocumentNumber
		data.Series = iss.Series
		data.AccessKey = iss.AccessKey
		data.AuthorityProtocol = iss.AuthorityProtocol
		data.IssuedAt = formatTime(iss.IssuedAt)
	}
	return data
}
