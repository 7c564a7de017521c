package fiscal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	domfiscal "github.com/jhoicas/nota-fiscal-api/internal/domain/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// Submitter envía una nota pending a la SEFAZ y devuelve el resultado.
// Nunca escribe en el almacén: aplicar el resultado es tarea del Reconciler.
type Submitter struct {
	invoiceRepo repository.InvoiceRepository
	authority   AuthorityClient
	renderer    DocumentRenderer // opcional
	log         *logger.Logger
}

// NewSubmitter construye el submitter. renderer puede ser nil (sin XML).
func NewSubmitter(invoiceRepo repository.InvoiceRepository, authority AuthorityClient, renderer DocumentRenderer, log *logger.Logger) *Submitter {
	return &Submitter{
		invoiceRepo: invoiceRepo,
		authority:   authority,
		renderer:    renderer,
		log:         log.Component("submitter"),
	}
}

// Submit carga la nota, recalcula el total y llama a la autoridad.
//
// Errores:
//   - domain.ErrNotFound si la nota no existe.
//   - domain.ErrConflict si la nota ya salió de pending.
//   - cualquier fallo de lectura del almacén.
//
// Un rechazo de la SEFAZ es un Rejected, no un error.
func (s *Submitter) Submit(ctx context.Context, invoiceID string) (Outcome, error) {
	// ── 1. Cargar nota ────────────────────────────────────────────────────────
	inv, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("obtener nota %s: %w", invoiceID, err)
	}
	if inv == nil {
		return nil, fmt.Errorf("nota %s: %w", invoiceID, domain.ErrNotFound)
	}
	if inv.Status != entity.InvoiceStatusPending {
		return nil, fmt.Errorf("%w: la nota %s ya está en estado %s", domain.ErrConflict, invoiceID, inv.Status)
	}

	// ── 2. Recalcular total (nunca se confía en el valor guardado) ────────────
	total := entity.ComputeTotal(inv.Items)

	// ── 3. Enviar a la SEFAZ ──────────────────────────────────────────────────
	outcome := s.authority.Submit(ctx, SubmissionRequest{
		InvoiceID:     inv.ID,
		Kind:          inv.Kind,
		CustomerName:  inv.CustomerName,
		CustomerTaxID: inv.CustomerTaxID,
		TotalValue:    total,
		Items:         inv.Items,
	})

	switch o := outcome.(type) {
	case Issued:
		o.TotalValue = total
		if o.Series == "" {
			o.Series = "1"
		}
		if o.DocumentNumber == "" || o.AccessKey == "" || o.AuthorityProtocol == "" {
			s.log.Warn().Str("invoice_id", inv.ID).Msg("autorización incompleta de la SEFAZ, se trata como fallo de comunicación")
			return Rejected{ErrorMessage: TransientAuthorityMessage}, nil
		}
		if !domfiscal.ValidAccessKey(o.AccessKey) || !domfiscal.ValidDocumentNumber(o.DocumentNumber) {
			s.log.Warn().
				Str("invoice_id", inv.ID).
				Str("access_key", o.AccessKey).
				Str("document_number", o.DocumentNumber).
				Msg("autorización de la SEFAZ con chave o número mal formados, se trata como fallo de comunicación")
			return Rejected{ErrorMessage: TransientAuthorityMessage}, nil
		}
		s.render(inv, total, &o)
		return o, nil
	case Rejected:
		if strings.TrimSpace(o.ErrorMessage) == "" {
			o.ErrorMessage = TransientAuthorityMessage
		}
		return o, nil
	default:
		s.log.Warn().Str("invoice_id", inv.ID).Msgf("resultado de la autoridad no reconocido: %T", outcome)
		return Rejected{ErrorMessage: TransientAuthorityMessage}, nil
	}
}

// render completa RenderedDocument; un fallo no invalida la autorización ya obtenida.
func (s *Submitter) render(inv *entity.Invoice, total decimal.Decimal, o *Issued) {
	if s.renderer == nil || o.RenderedDocument != "" {
		return
	}
	snapshot := inv.Clone()
	snapshot.TotalValue = total
	doc, err := s.renderer.Render(snapshot, *o)
	if err != nil {
		s.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo generar el XML de la nota autorizada")
		return
	}
	o.RenderedDocument = doc
}
