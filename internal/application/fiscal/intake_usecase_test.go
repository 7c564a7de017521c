package fiscal

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nota-fiscal-api/internal/application/dto"
	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
)

func TestCreateInvoice_ComputesTotalAndPersistsPending(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	req := serviceRequest()
	bogus := decimal.NewFromInt(999)
	req.TotalValue = &bogus

	resp := mustCreate(t, h, req)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.True(t, dec("300.00").Equal(resp.TotalValue), "el total enviado por el cliente se ignora")
	assert.Empty(t, resp.AccessKey)
	assert.Empty(t, resp.ErrorMessage)

	stored, err := h.store.Invoices().GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NoError(t, stored.CheckInvariants())
	assert.Equal(t, 1, h.metrics.created)
}

func TestCreateInvoice_RoundsToTwoDecimals(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	req := serviceRequest()
	req.Kind = "goods"
	req.Items = []dto.InvoiceItemRequest{{Description: "Widget", Quantity: 3, UnitPrice: "9.99", CFOP: "5102", NCM: "84713012"}}

	resp := mustCreate(t, h, req)

	assert.Equal(t, "29.97", resp.TotalValue.StringFixed(2))
	assert.Equal(t, "goods", resp.Kind)
	assert.Equal(t, "5102", resp.Items[0].CFOP)
}

func TestCreateInvoice_TrimsInput(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	req := serviceRequest()
	req.Kind = " SERVICE "
	req.CustomerName = "  Ana Souza  "

	resp := mustCreate(t, h, req)

	assert.Equal(t, "service", resp.Kind)
	assert.Equal(t, "Ana Souza", resp.CustomerName)
}

func TestCreateInvoice_ValidationGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.CreateInvoiceRequest)
		field  string
	}{
		{"sin líneas", func(r *dto.CreateInvoiceRequest) { r.Items = []dto.InvoiceItemRequest{} }, "items"},
		{"líneas nil", func(r *dto.CreateInvoiceRequest) { r.Items = nil }, "items"},
		{"cliente vacío", func(r *dto.CreateInvoiceRequest) { r.CustomerName = "   " }, "customer_name"},
		{"documento vacío", func(r *dto.CreateInvoiceRequest) { r.CustomerTaxID = "" }, "customer_tax_id"},
		{"cantidad cero", func(r *dto.CreateInvoiceRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"cantidad negativa", func(r *dto.CreateInvoiceRequest) { r.Items[0].Quantity = -1 }, "items[0].quantity"},
		{"precio negativo", func(r *dto.CreateInvoiceRequest) { r.Items[0].UnitPrice = "-0.01" }, "items[0].unit_price"},
		{"precio no numérico", func(r *dto.CreateInvoiceRequest) { r.Items[0].UnitPrice = "abc" }, "items[0].unit_price"},
		{"tipo desconocido", func(r *dto.CreateInvoiceRequest) { r.Kind = "rent" }, "kind"},
		{"cfop con letras", func(r *dto.CreateInvoiceRequest) { r.Items[0].CFOP = "51A2" }, "items[0].cfop"},
		{"precio mayor que NUMERIC(15,2)", func(r *dto.CreateInvoiceRequest) { r.Items[0].UnitPrice = "1e20" }, "items[0].unit_price"},
		{"precio con exponente enorme", func(r *dto.CreateInvoiceRequest) { r.Items[0].UnitPrice = "1e9000" }, "items[0].unit_price"},
		{"total mayor que NUMERIC(15,2)", func(r *dto.CreateInvoiceRequest) {
			r.Items[0].Quantity = 1000
			r.Items[0].UnitPrice = "9999999999999"
		}, "total_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, issuedOutcome(), nil)
			req := serviceRequest()
			tt.mutate(&req)

			resp, err := h.intake.CreateInvoice(context.Background(), req)

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)

			all, err := h.store.Invoices().List(context.Background(), repository.InvoiceFilter{})
			require.NoError(t, err)
			assert.Empty(t, all, "no se persiste nada si la validación falla")
			assert.Equal(t, 0, h.metrics.created)
		})
	}
}

func TestCreateInvoice_ReportsAllInvalidFields(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	req := dto.CreateInvoiceRequest{
		Kind:  "service",
		Items: []dto.InvoiceItemRequest{{Description: "x", Quantity: 0, UnitPrice: "1"}},
	}

	_, err := h.intake.CreateInvoice(context.Background(), req)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"customer_name", "customer_tax_id", "items[0].quantity"}, verr.FieldNames())
}

func TestReissue_CopiesFailedInvoiceIntoNewPending(t *testing.T) {
	h := newHarness(t, Rejected{ErrorMessage: TransientAuthorityMessage}, nil)
	ctx := context.Background()
	src := mustCreate(t, h, serviceRequest())
	_, err := h.emission.Emit(ctx, src.ID)
	require.NoError(t, err)

	re, err := h.intake.Reissue(ctx, src.ID)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, re.ID)
	assert.Equal(t, "pending", re.Status)
	assert.Equal(t, src.ID, re.ReissueOf)
	assert.True(t, src.TotalValue.Equal(re.TotalValue))

	original, err := h.query.GetInvoice(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", original.Status, "la nota original sigue terminal")
}

func TestReissue_Errors(t *testing.T) {
	h := newHarness(t, issuedOutcome(), nil)
	ctx := context.Background()

	_, err := h.intake.Reissue(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pending := mustCreate(t, h, serviceRequest())
	_, err = h.intake.Reissue(ctx, pending.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.emission.Emit(ctx, pending.ID)
	require.NoError(t, err)
	_, err = h.intake.Reissue(ctx, pending.ID)
	assert.ErrorIs(t, err, domain.ErrConflict, "una nota issued no se reemite")
}
