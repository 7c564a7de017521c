package fiscal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
)

// QueryUseCase lecturas del panel fiscal.
type QueryUseCase struct {
	invoiceRepo repository.InvoiceRepository
}

// NewQueryUseCase construye el caso de uso.
func NewQueryUseCase(invoiceRepo repository.InvoiceRepository) *QueryUseCase {
	return &QueryUseCase{invoiceRepo: invoiceRepo}
}

// GetInvoice devuelve la nota o domain.ErrNotFound.
func (uc *QueryUseCase) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("obtener nota: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return toInvoiceResponse(inv), nil
}

// ListInvoices lista notas, más recientes primero. status vacío = todas.
func (uc *QueryUseCase) ListInvoices(ctx context.Context, status string, page dto.PageRequest) (*dto.InvoiceListResponse, error) {
	page.DefaultPage()
	st := entity.InvoiceStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, domain.NewValidationError(map[string]string{"status": "debe ser uno de: pending issued failed"})
	}

	list, err := uc.invoiceRepo.List(ctx, repository.InvoiceFilter{Status: st, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return nil, fmt.Errorf("listar notas: %w", err)
	}
	out := &dto.InvoiceListResponse{
		Items: make([]dto.InvoiceResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, inv := range list {
		out.Items = append(out.Items, *toInvoiceResponse(inv))
	}

	counts, err := uc.invoiceRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("contar notas: %w", err)
	}
	if st != "" {
		out.Page.Total = counts[st]
	} else {
		for _, n := range counts {
			out.Page.Total += n
		}
	}
	return out, nil
}

// Summary totales por estado.
func (uc *QueryUseCase) Summary(ctx context.Context) (*dto.InvoiceSummaryResponse, error) {
	counts, err := uc.invoiceRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("contar notas: %w", err)
	}
	out := &dto.InvoiceSummaryResponse{
		Pending: counts[entity.InvoiceStatusPending],
		Issued:  counts[entity.InvoiceStatusIssued],
		Failed:  counts[entity.InvoiceStatusFailed],
	}
	out.Total = out.Pending + out.Issued + out.Failed
	return out, nil
}
