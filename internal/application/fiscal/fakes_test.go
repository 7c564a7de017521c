package fiscal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
	"github.com/jhoicas/nota-fiscal-api/internal/infrastructure/memory"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

var fixedNow = time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC)

const testAccessKey = "35240300000000000191990010001234561777777776"

// stubAuthority devuelve siempre el mismo resultado y registra lo recibido.
type stubAuthority struct {
	mu       sync.Mutex
	outcome  Outcome
	calls    int
	lastReq  SubmissionRequest
	ctxError error
}

func (a *stubAuthority) Submit(ctx context.Context, req SubmissionRequest) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.lastReq = req
	a.ctxError = ctx.Err()
	return a.outcome
}

func issuedOutcome() Issued {
	return Issued{
		DocumentNumber:    "123456",
		Series:            "1",
		AccessKey:         testAccessKey,
		AuthorityProtocol: "1710509400000042",
		AuthorizedAt:      fixedNow,
	}
}

type stubRenderer struct {
	doc string
	err error
}

func (r stubRenderer) Render(inv *entity.Invoice, issued Issued) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.doc + ":" + inv.TotalValue.StringFixed(2) + ":" + issued.AccessKey, nil
}

// failingLedger simula la caída del almacén del flujo de caja.
type failingLedger struct{}

func (failingLedger) Create(context.Context, *entity.LedgerEntry) (bool, error) {
	return false, errors.New("connection reset by peer")
}

func (failingLedger) GetBySource(context.Context, string, string) (*entity.LedgerEntry, error) {
	return nil, nil
}

var _ repository.LedgerRepository = failingLedger{}

// recordingMetrics cuenta llamadas al puerto de métricas.
type recordingMetrics struct {
	mu             sync.Mutex
	created        int
	outcomes       map[string]int
	ledgerFailures int
	backfilled     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}}
}

func (m *recordingMetrics) InvoiceCreated(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) SubmissionCompleted(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *recordingMetrics) LedgerWriteFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerFailures++
}

func (m *recordingMetrics) LedgerBackfilled(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backfilled += n
}

// harness arma los casos de uso sobre el almacén en memoria.
type harness struct {
	store      *memory.Store
	authority  *stubAuthority
	metrics    *recordingMetrics
	intake     *IntakeUseCase
	reconciler *Reconciler
	emission   *EmissionUseCase
	query      *QueryUseCase
	ledger     *LedgerUseCase
}

func newHarness(t *testing.T, outcome Outcome, ledgerRepo repository.LedgerRepository) *harness {
	t.Helper()
	store := memory.NewStore()
	if ledgerRepo == nil {
		ledgerRepo = store.Ledger()
	}
	log := logger.Nop()
	h := &harness{
		store:     store,
		authority: &stubAuthority{outcome: outcome},
		metrics:   newRecordingMetrics(),
	}
	h.intake = NewIntakeUseCase(store.Invoices(), h.metrics, log)
	h.intake.now = func() time.Time { return fixedNow }

	submitter := NewSubmitter(store.Invoices(), h.authority, stubRenderer{doc: "<NFe/>"}, log)
	reconciler := NewReconciler(store.Invoices(), ledgerRepo, h.metrics, log)
	reconciler.now = func() time.Time { return fixedNow.Add(time.Minute) }

	h.reconciler = reconciler
	h.emission = NewEmissionUseCase(submitter, reconciler, h.metrics, log)
	h.query = NewQueryUseCase(store.Invoices())
	h.ledger = NewLedgerUseCase(store.Invoices(), store.Ledger(), h.metrics, log)
	return h
}

func serviceRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		Kind:          "service",
		CustomerName:  "Ana Souza",
		CustomerTaxID: "111.222.333-44",
		Items: []dto.InvoiceItemRequest{
			{Description: "Consulting", Quantity: 2, UnitPrice: "150.00"},
		},
	}
}

func mustCreate(t *testing.T, h *harness, req dto.CreateInvoiceRequest) *dto.InvoiceResponse {
	t.Helper()
	resp, err := h.intake.CreateInvoice(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return resp
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
