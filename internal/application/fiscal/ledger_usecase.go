package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

const defaultBackfillBatch = 500

// LedgerUseCase recupera asientos que no se registraron tras una emisión exitosa.
type LedgerUseCase struct {
	invoiceRepo repository.InvoiceRepository
	ledgerRepo  repository.LedgerRepository
	metrics     EmissionMetrics
	log         *logger.Logger
	now         func() time.Time
}

// NewLedgerUseCase construye el caso de uso.
func NewLedgerUseCase(invoiceRepo repository.InvoiceRepository, ledgerRepo repository.LedgerRepository, metrics EmissionMetrics, log *logger.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		invoiceRepo: invoiceRepo,
		ledgerRepo:  ledgerRepo,
		metrics:     metricsOrNop(metrics),
		log:         log.Component("ledger"),
		now:         time.Now,
	}
}

// Backfill registra el asiento de cada nota issued que no lo tenga. Es idempotente:
// la unicidad por (source_type, source_id) evita duplicados si se ejecuta en paralelo.
func (uc *LedgerUseCase) Backfill(ctx context.Context, limit int) (*dto.LedgerBackfillResponse, error) {
	if limit <= 0 {
		limit = defaultBackfillBatch
	}
	missing, err := uc.invoiceRepo.ListIssuedWithoutLedger(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("buscar notas sin asiento: %w", err)
	}

	out := &dto.LedgerBackfillResponse{Scanned: len(missing)}
	for _, inv := range missing {
		entry := entity.NewLedgerEntryForInvoice(uuid.New().String(), inv, uc.now().UTC())
		created, err := uc.ledgerRepo.Create(ctx, entry)
		if err != nil {
			uc.metrics.LedgerBackfilled(out.Posted)
			return out, fmt.Errorf("registrar asiento de la nota %s: %w", inv.ID, err)
		}
		if created {
			out.Posted++
		}
	}
	uc.metrics.LedgerBackfilled(out.Posted)
	uc.log.Info().Int("scanned", out.Scanned).Int("posted", out.Posted).Msg("conciliación del flujo de caja terminada")
	return out, nil
}
