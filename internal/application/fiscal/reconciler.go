package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// ReconcileResult nota ya actualizada y estado del asiento en el flujo de caja.
type ReconcileResult struct {
	Invoice        *entity.Invoice
	LedgerEntry    *entity.LedgerEntry // nil en Rejected o si falló la escritura
	LedgerRecorded bool
	LedgerErr      error // envuelve domain.ErrLedgerWrite
}

// Reconciler aplica el resultado del envío sobre la nota y, si fue autorizada,
// registra un único asiento de entrada en el flujo de caja.
type Reconciler struct {
	invoiceRepo repository.InvoiceRepository
	ledgerRepo  repository.LedgerRepository
	metrics     EmissionMetrics
	log         *logger.Logger
	now         func() time.Time
	newID       func() string
}

// NewReconciler construye el reconciliador.
func NewReconciler(invoiceRepo repository.InvoiceRepository, ledgerRepo repository.LedgerRepository, metrics EmissionMetrics, log *logger.Logger) *Reconciler {
	return &Reconciler{
		invoiceRepo: invoiceRepo,
		ledgerRepo:  ledgerRepo,
		metrics:     metricsOrNop(metrics),
		log:         log.Component("reconciler"),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Apply escribe el resultado con compare-and-swap sobre status = pending.
// La fecha de emisión es la de autorización informada por la SEFAZ (la misma del infProt);
// sin ella se usa el reloj local.
// Si la nota ya salió de pending devuelve domain.ErrConflict y no toca el flujo de caja.
// El asiento se escribe después de la nota; si falla, la nota sigue issued y el fallo
// se reporta en LedgerErr.
func (r *Reconciler) Apply(ctx context.Context, invoiceID string, outcome Outcome) (*ReconcileResult, error) {
	now := r.now().UTC()

	switch o := outcome.(type) {
	case Issued:
		issuedAt := now
		if !o.AuthorizedAt.IsZero() {
			issuedAt = o.AuthorizedAt.UTC()
		}
		inv, err := r.invoiceRepo.MarkIssued(ctx, invoiceID, o.Issuance(issuedAt), o.TotalValue)
		if err != nil {
			return nil, fmt.Errorf("marcar nota %s como issued: %w", invoiceID, err)
		}
		res := &ReconcileResult{Invoice: inv}
		r.postLedger(ctx, inv, now, res)
		r.log.Info().
			Str("invoice_id", inv.ID).
			Str("status", string(inv.Status)).
			Str("access_key", inv.Issuance.AccessKey).
			Bool("ledger_recorded", res.LedgerRecorded).
			Msg("nota autorizada por la SEFAZ")
		return res, nil

	case Rejected:
		inv, err := r.invoiceRepo.MarkFailed(ctx, invoiceID, o.ErrorMessage, now)
		if err != nil {
			return nil, fmt.Errorf("marcar nota %s como failed: %w", invoiceID, err)
		}
		r.log.Info().
			Str("invoice_id", inv.ID).
			Str("status", string(inv.Status)).
			Str("error_message", inv.ErrorMessage).
			Msg("nota rechazada por la SEFAZ")
		return &ReconcileResult{Invoice: inv}, nil
	}
	return nil, fmt.Errorf("%w: resultado de envío vacío", domain.ErrInvalidInput)
}

// postLedger inserta el asiento; un duplicado cuenta como registrado.
func (r *Reconciler) postLedger(ctx context.Context, inv *entity.Invoice, now time.Time, res *ReconcileResult) {
	entry := entity.NewLedgerEntryForInvoice(r.newID(), inv, now)
	created, err := r.ledgerRepo.Create(ctx, entry)
	if err != nil {
		r.metrics.LedgerWriteFailed()
		r.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("nota emitida sin asiento en el flujo de caja")
		res.LedgerErr = fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
		return
	}
	res.LedgerRecorded = true
	if created {
		res.LedgerEntry = entry
		return
	}
	r.log.Debug().Str("invoice_id", inv.ID).Msg("asiento ya existente, no se duplica")
	existing, err := r.ledgerRepo.GetBySource(ctx, entry.SourceType, entry.SourceID)
	if err != nil {
		r.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo leer el asiento existente")
		return
	}
	res.LedgerEntry = existing
}
