package fiscal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
)

func TestEmit_IssuedUpdatesInvoiceAndPostsLedger(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	ctx := context.Background()
	created := mustCreate(t, h, serviceRequest())

	resp, err := h.emission.Emit(ctx, created.ID)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, MessageIssued, resp.Message)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, "issued", resp.Data.Status)
	assert.Len(t, resp.Data.DocumentNumber, 6)
	assert.Len(t, resp.Data.AccessKey, 44)
	assert.Equal(t, "1", resp.Data.Series)
	assert.True(t, resp.Data.LedgerRecorded)
	assert.Equal(t, "2024-03-15T13:30:00Z", resp.Data.IssuedAt, "fecha de autorización de la SEFAZ")

	inv, err := h.store.Invoices().GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, inv.CheckInvariants())
	assert.Equal(t, entity.InvoiceStatusIssued, inv.Status)
	assert.True(t, fixedNow.Equal(inv.Issuance.IssuedAt))
	assert.Equal(t, "<NFe/>:300.00:"+testAccessKey, inv.Issuance.RenderedDocument)

	entry, err := h.store.Ledger().GetBySource(ctx, entity.LedgerSourceInvoice, created.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, dec("300.00").Equal(entry.Amount))
	assert.Equal(t, entity.LedgerDirectionInflow, entry.Direction)
	assert.Equal(t, entity.LedgerCategorySales, entry.Category)
	assert.Equal(t, "Nota Fiscal NFS-e - Ana Souza", entry.Description)
	assert.Equal(t, "2024-03-15", entry.Date)
	assert.Equal(t, 1, h.store.Ledger().Count())

	assert.Equal(t, 1, h.metrics.outcomes["issued"])
	assert.True(t, dec("300.00").Equal(h.authority.lastReq.TotalValue))
	assert.Equal(t, "Ana Souza", h.authority.lastReq.CustomerName)
}

func TestEmit_RejectedMarksFailedWithoutLedger(t *testing.T) {
	h := newHarness(t, Rejected{ErrorMessage: TransientAuthorityMessage}, nil)
	ctx := context.Background()
	created := mustCreate(t, h, serviceRequest())

	resp, err := h.emission.Emit(ctx, created.ID)
	require.NoError(t, err, "un rechazo no es un error")

	assert.False(t, resp.Success)
	assert.Equal(t, TransientAuthorityMessage, resp.Message)
	assert.Equal(t, "failed", resp.Data.Status)
	assert.Equal(t, TransientAuthorityMessage, resp.Data.ErrorMessage)
	assert.Empty(t, resp.Data.AccessKey)
	assert.False(t, resp.Data.LedgerRecorded)

	inv, err := h.store.Invoices().GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, inv.CheckInvariants())
	assert.Nil(t, inv.Issuance)
	assert.Equal(t, 0, h.store.Ledger().Count())
	assert.Equal(t, 1, h.metrics.outcomes["failed"])
}

func TestEmit_EmptyRejectionGetsDefaultMessage(t *testing.T) {
	h := newHarness(t, Rejected{}, nil)
	created := mustCreate(t, h, serviceRequest())

	resp, err := h.emission.Emit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, TransientAuthorityMessage, resp.Data.ErrorMessage)
}

func TestEmit_IncompleteAuthorizationIsRejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Issued)
	}{
		{"sin chave", func(o *Issued) { o.AccessKey = "" }},
		{"sin protocolo", func(o *Issued) { o.AuthorityProtocol = "" }},
		{"chave corta", func(o *Issued) { o.AccessKey = "123" }},
		{"chave con letras", func(o *Issued) { o.AccessKey = testAccessKey[:43] + "A" }},
		{"dígito verificador incorrecto", func(o *Issued) { o.AccessKey = testAccessKey[:43] + "1" }},
		{"número de un dígito", func(o *Issued) { o.DocumentNumber = "7" }},
		{"número no numérico", func(o *Issued) { o.DocumentNumber = "12345X" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partial := issuedOutcome()
			tt.mutate(&partial)
			h := newHarness(t, partial, nil)
			ctx := context.Background()
			created := mustCreate(t, h, serviceRequest())

			resp, err := h.emission.Emit(ctx, created.ID)
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, "failed", resp.Data.Status)
			assert.Equal(t, TransientAuthorityMessage, resp.Data.ErrorMessage)
			assert.Empty(t, resp.Data.AccessKey)

			inv, err := h.store.Invoices().GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Nil(t, inv.Issuance)
			assert.Equal(t, 0, h.store.Ledger().Count())
		})
	}
}

func TestReconcile_DuplicateLedgerReturnsStoredEntry(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	ctx := context.Background()
	created := mustCreate(t, h, serviceRequest())

	stored := &entity.LedgerEntry{
		ID:         "asiento-previo",
		SourceType: entity.LedgerSourceInvoice,
		SourceID:   created.ID,
		Amount:     dec("300.00"),
	}
	_, err := h.store.Ledger().Create(ctx, stored)
	require.NoError(t, err)

	res, err := h.reconciler.Apply(ctx, created.ID, issuedOutcome())
	require.NoError(t, err)

	assert.True(t, res.LedgerRecorded)
	require.NotNil(t, res.LedgerEntry)
	assert.Equal(t, "asiento-previo", res.LedgerEntry.ID)
	assert.Equal(t, 1, h.store.Ledger().Count())
}

func TestEmit_IssuedAtFallsBackToReconcileClock(t *testing.T) {
	noTimestamp := issuedOutcome()
	noTimestamp.AuthorizedAt = time.Time{}
	h := newHarness(t, noTimestamp, nil)
	created := mustCreate(t, h, serviceRequest())

	resp, err := h.emission.Emit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15T13:31:00Z", resp.Data.IssuedAt)
}

func TestEmit_NotFoundDoesNotCallAuthority(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)

	resp, err := h.emission.Emit(context.Background(), "does-not-exist")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, h.authority.calls)
	assert.Equal(t, 0, h.store.Ledger().Count())
}

func TestEmit_EmptyIDIsValidationError(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)

	_, err := h.emission.Emit(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmit_TerminalInvoiceIsConflict(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	ctx := context.Background()
	created := mustCreate(t, h, serviceRequest())
	first, err := h.emission.Emit(ctx, created.ID)
	require.NoError(t, err)

	_, err = h.emission.Emit(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, h.authority.calls)
	assert.Equal(t, 1, h.store.Ledger().Count())

	// Lecturas repetidas de una nota terminal devuelven los mismos datos.
	a, err := h.query.GetInvoice(ctx, created.ID)
	require.NoError(t, err)
	b, err := h.query.GetInvoice(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, first.Data.AccessKey, a.AccessKey)
	assert.Equal(t, first.Data.AuthorityProtocol, a.AuthorityProtocol)
}

func TestEmit_ConcurrentSubmissionsPostOneLedgerEntry(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	ctx := context.Background()
	created := mustCreate(t, h, serviceRequest())

	var ok, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.emission.Emit(ctx, created.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, domain.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(15), conflicts)
	assert.Equal(t, 1, h.store.Ledger().Count())
}

func TestEmit_LedgerFailureKeepsInvoiceIssued(t *testing.T) {
	h := newHarness(t, issuedOutcome(), failingLedger{})
	ctx := context.Background()
	created := mustCreate(t, h, serviceRequest())

	resp, err := h.emission.Emit(ctx, created.ID)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, WarningLedgerMissing, resp.Warning)
	assert.False(t, resp.Data.LedgerRecorded)
	assert.Equal(t, "issued", resp.Data.Status)
	assert.Equal(t, 1, h.metrics.ledgerFailures)

	// La conciliación posterior recupera el asiento perdido.
	out, err := h.ledger.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Scanned)
	assert.Equal(t, 1, out.Posted)

	entry, err := h.store.Ledger().GetBySource(ctx, entity.LedgerSourceInvoice, created.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, dec("300").Equal(entry.Amount))

	again, err := h.ledger.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Posted)
	assert.Equal(t, 1, h.metrics.backfilled)
}

func TestEmit_CallerCancellationDoesNotAbortSubmission(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	created := mustCreate(t, h, serviceRequest())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := h.emission.Emit(ctx, created.ID)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NoError(t, h.authority.ctxError, "la SEFAZ recibe un contexto sin cancelación")
}

func TestSubmit_DoesNotWrite(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	ctx := context.Background()
	created := mustCreate(t, h, serviceRequest())
	submitter := NewSubmitter(h.store.Invoices(), h.authority, nil, h.intake.log)

	outcome, err := submitter.Submit(ctx, created.ID)
	require.NoError(t, err)
	require.IsType(t, Issued{}, outcome)
	assert.Equal(t, entity.InvoiceStatusIssued, OutcomeStatus(outcome))
	assert.True(t, dec("300").Equal(outcome.(Issued).TotalValue))
	assert.Empty(t, outcome.(Issued).RenderedDocument)

	inv, err := h.store.Invoices().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPending, inv.Status)
	assert.Equal(t, 0, h.store.Ledger().Count())
}

func TestSubmit_RendererFailureStillIssues(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	created := mustCreate(t, h, serviceRequest())
	submitter := NewSubmitter(h.store.Invoices(), h.authority, stubRenderer{err: errors.New("xml roto")}, h.intake.log)

	outcome, err := submitter.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	issued, ok := outcome.(Issued)
	require.True(t, ok)
	assert.Empty(t, issued.RenderedDocument)
}

func TestReconciler_NilOutcome(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	created := mustCreate(t, h, serviceRequest())
	r := NewReconciler(h.store.Invoices(), h.store.Ledger(), nil, h.intake.log)

	_, err := r.Apply(context.Background(), created.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, entity.InvoiceStatus(""), OutcomeStatus(nil))
}
