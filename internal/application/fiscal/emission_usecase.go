package fiscal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// Mensajes del sobre de emisión.
const (
	MessageIssued        = "Nota emitida com sucesso"
	WarningLedgerMissing = "Nota emitida, mas o lançamento no fluxo de caixa não foi registrado"
)

// EmissionUseCase orquesta Submitter -> Reconciler para una nota:
//
//	cargar nota → SEFAZ (simulada o real) → compare-and-swap de estado → asiento en flujo de caja
//
// El envío no se cancela con el contexto del llamador: una vez invocada la SEFAZ,
// su resultado siempre se concilia.
type EmissionUseCase struct {
	submitter  *Submitter
	reconciler *Reconciler
	metrics    EmissionMetrics
	log        *logger.Logger
	now        func() time.Time
}

// NewEmissionUseCase construye el orquestador.
func NewEmissionUseCase(submitter *Submitter, reconciler *Reconciler, metrics EmissionMetrics, log *logger.Logger) *EmissionUseCase {
	return &EmissionUseCase{
		submitter:  submitter,
		reconciler: reconciler,
		metrics:    metricsOrNop(metrics),
		log:        log.Component("emission"),
		now:        time.Now,
	}
}

// Emit envía la nota y concilia el resultado.
//
// Retorna:
//   - Success=true  si la SEFAZ autorizó (con Warning si el asiento no se registró).
//   - Success=false si la SEFAZ rechazó; el rechazo queda guardado en la nota.
//   - domain.ErrInvalidInput si invoiceID está vacío.
//   - domain.ErrNotFound / domain.ErrConflict y fallos de infraestructura como error.
func (uc *EmissionUseCase) Emit(ctx context.Context, invoiceID string) (*dto.EmissionResponse, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, domain.NewValidationError(map[string]string{"invoiceId": "es obligatorio"})
	}
	ctx = context.WithoutCancel(ctx)
	start := uc.now()

	outcome, err := uc.submitter.Submit(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	res, err := uc.reconciler.Apply(ctx, invoiceID, outcome)
	if err != nil {
		return nil, fmt.Errorf("conciliar resultado: %w", err)
	}

	status := string(res.Invoice.Status)
	uc.metrics.SubmissionCompleted(status, uc.now().Sub(start))

	resp := &dto.EmissionResponse{
		Data: toEmissionData(res.Invoice, res.LedgerRecorded),
	}
	switch o := outcome.(type) {
	case Issued:
		resp.Success = true
		resp.Message = MessageIssued
		if res.LedgerErr != nil {
			resp.Warning = WarningLedgerMissing
		}
	case Rejected:
		resp.Message = o.ErrorMessage
	}
	uc.log.Debug().Str("invoice_id", invoiceID).Str("outcome", status).Dur("elapsed", uc.now().Sub(start)).Msg("emisión conciliada")
	return resp, nil
}
