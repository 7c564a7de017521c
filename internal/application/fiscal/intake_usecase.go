package fiscal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
	"github.com/jhoicas/nota-fiscal-api/pkg/validation"
)

// IntakeUseCase valida y guarda nuevas notas en estado pending.
type IntakeUseCase struct {
	invoiceRepo repository.InvoiceRepository
	validator   *validation.Validator
	metrics     EmissionMetrics
	log         *logger.Logger
	now         func() time.Time
	newID       func() string
}

// NewIntakeUseCase construye el caso de uso.
func NewIntakeUseCase(invoiceRepo repository.InvoiceRepository, metrics EmissionMetrics, log *logger.Logger) *IntakeUseCase {
	return &IntakeUseCase{
		invoiceRepo: invoiceRepo,
		validator:   validation.New(),
		metrics:     metricsOrNop(metrics),
		log:         log.Component("intake"),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// CreateInvoice valida la solicitud y persiste exactamente una nota pending.
// Cualquier total enviado por el cliente se descarta; el total sale de las líneas.
func (uc *IntakeUseCase) CreateInvoice(ctx context.Context, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	normalizeCreateRequest(&in)

	fields, err := uc.validator.Struct(in)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}

	items := make([]entity.LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		price, err := it.UnitPrice.Decimal()
		if err != nil {
			return nil, domain.NewValidationError(map[string]string{
				fmt.Sprintf("items[%d].unit_price", i): "debe ser un número no negativo",
			})
		}
		items = append(items, entity.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   price,
			CFOP:        it.CFOP,
			NCM:         it.NCM,
		})
	}

	inv := entity.NewPendingInvoice(uc.newID(), entity.InvoiceKind(in.Kind), in.CustomerName, in.CustomerTaxID, items, uc.now().UTC())
	if inv.TotalValue.GreaterThan(validation.MaxAmount) {
		return nil, domain.NewValidationError(map[string]string{
			"total_value": "excede el importe máximo " + validation.MaxAmount.StringFixed(2),
		})
	}
	if err := uc.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("guardar nota: %w", err)
	}

	uc.metrics.InvoiceCreated(string(inv.Kind))
	uc.log.Info().
		Str("invoice_id", inv.ID).
		Str("kind", string(inv.Kind)).
		Str("total", inv.TotalValue.StringFixed(2)).
		Msg("nota creada en estado pending")
	return toInvoiceResponse(inv), nil
}

// Reissue crea una nota pending nueva con los datos de una nota failed.
// La nota original queda intacta; el nuevo registro apunta a ella con ReissueOf.
func (uc *IntakeUseCase) Reissue(ctx context.Context, failedID string) (*dto.InvoiceResponse, error) {
	src, err := uc.invoiceRepo.GetByID(ctx, failedID)
	if err != nil {
		return nil, fmt.Errorf("obtener nota: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("nota %s: %w", failedID, domain.ErrNotFound)
	}
	if src.Status != entity.InvoiceStatusFailed {
		return nil, fmt.Errorf("%w: solo se reemiten notas failed (estado actual %s)", domain.ErrConflict, src.Status)
	}

	inv := entity.NewPendingInvoice(uc.newID(), src.Kind, src.CustomerName, src.CustomerTaxID, src.Items, uc.now().UTC())
	inv.ReissueOf = src.ID
	if err := uc.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("guardar reemisión: %w", err)
	}

	uc.metrics.InvoiceCreated(string(inv.Kind))
	uc.log.Info().Str("invoice_id", inv.ID).Str("reissue_of", src.ID).Msg("nota reemitida en estado pending")
	return toInvoiceResponse(inv), nil
}

func normalizeCreateRequest(in *dto.CreateInvoiceRequest) {
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerTaxID = strings.TrimSpace(in.CustomerTaxID)
	in.Items = append([]dto.InvoiceItemRequest(nil), in.Items...)
	for i := range in.Items {
		it := &in.Items[i]
		it.Description = strings.TrimSpace(it.Description)
		it.UnitPrice = dto.AmountInput(strings.TrimSpace(string(it.UnitPrice)))
		it.CFOP = strings.TrimSpace(it.CFOP)
		it.NCM = strings.TrimSpace(it.NCM)
	}
}
