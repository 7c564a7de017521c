package fiscal

import (
	"context"
	"fmt"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
)

// PDFUseCase genera la representación gráfica (DANFE simplificado) de una nota autorizada.
type PDFUseCase struct {
	invoiceRepo repository.InvoiceRepository
	generator   InvoicePDFGenerator
	issuer      IssuerInfo
}

// NewPDFUseCase construye el caso de uso inyectando todas sus dependencias.
func NewPDFUseCase(invoiceRepo repository.InvoiceRepository, generator InvoicePDFGenerator, issuer IssuerInfo) *PDFUseCase {
	return &PDFUseCase{invoiceRepo: invoiceRepo, generator: generator, issuer: issuer}
}

// DownloadInvoicePDF genera el PDF de una nota issued.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si la nota no existe.
//   - domain.ErrInvalidInput     si la nota no está issued (sin chave de acesso).
func (uc *PDFUseCase) DownloadInvoicePDF(ctx context.Context, invoiceID string) (pdfBytes []byte, filename string, err error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener nota: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}
	if inv.Status != entity.InvoiceStatusIssued || inv.Issuance == nil {
		return nil, "", fmt.Errorf("%w: la nota está en estado %s, solo las notas autorizadas tienen DANFE",
			domain.ErrInvalidInput, inv.Status)
	}

	pdfBytes, err = uc.generator.GenerateInvoicePDF(ctx, inv, uc.issuer)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}

	filename = fmt.Sprintf("nota_%s_%s-%s.pdf", inv.Kind.Label(), inv.Issuance.Series, inv.Issuance.DocumentNumber)
	return pdfBytes, filename, nil
}
