package entity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nota-fiscal-api/internal/domain"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func issuanceFixture() entity.Issuance {
	return entity.Issuance{
		DocumentNumber:    "123456",
		Series:            "1",
		AccessKey:         "35240300000000000191550010001234561123456780",
		AuthorityProtocol: "1710498600000123",
		RenderedDocument:  "<NFe/>",
		IssuedAt:          testNow,
	}
}

func TestComputeTotal(t *testing.T) {
	cases := []struct {
		name  string
		items []entity.LineItem
		want  string
	}{
		{"consultoria", []entity.LineItem{{Description: "Consulting", Quantity: 2, UnitPrice: dec("150.00")}}, "300"},
		{"widget redondeo", []entity.LineItem{{Description: "Widget", Quantity: 3, UnitPrice: dec("9.99")}}, "29.97"},
		{"varias líneas", []entity.LineItem{
			{Description: "A", Quantity: 1, UnitPrice: dec("0.333")},
			{Description: "B", Quantity: 3, UnitPrice: dec("0.333")},
		}, "1.33"},
		{"precio cero", []entity.LineItem{{Description: "Brinde", Quantity: 5, UnitPrice: decimal.Zero}}, "0"},
		{"sin líneas", nil, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, dec(tc.want).Equal(entity.ComputeTotal(tc.items)), "total = %s", entity.ComputeTotal(tc.items))
		})
	}
}

func TestNewPendingInvoice_CopiesItemsAndComputesTotal(t *testing.T) {
	items := []entity.LineItem{{Description: "Consulting", Quantity: 2, UnitPrice: dec("150")}}
	inv := entity.NewPendingInvoice("inv-1", entity.InvoiceKindService, "Ana Souza", "111.222.333-44", items, testNow)

	items[0].Quantity = 99 // el llamador no debe poder mutar la nota

	assert.Equal(t, entity.InvoiceStatusPending, inv.Status)
	assert.Equal(t, 2, inv.Items[0].Quantity)
	assert.True(t, dec("300").Equal(inv.TotalValue))
	require.NoError(t, inv.CheckInvariants())
}

func TestMarkIssued(t *testing.T) {
	inv := entity.NewPendingInvoice("inv-1", entity.InvoiceKindService, "Ana", "1", []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: dec("10")}}, testNow)

	require.NoError(t, inv.MarkIssued(issuanceFixture(), dec("10")))

	assert.Equal(t, entity.InvoiceStatusIssued, inv.Status)
	require.NotNil(t, inv.Issuance)
	assert.Empty(t, inv.ErrorMessage)
	require.NoError(t, inv.CheckInvariants())

	err := inv.MarkFailed("otra vez", testNow)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	err = inv.MarkIssued(issuanceFixture(), dec("10"))
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestMarkIssued_IncompleteIssuance(t *testing.T) {
	inv := entity.NewPendingInvoice("inv-1", entity.InvoiceKindGoods, "Ana", "1", []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: dec("10")}}, testNow)
	iss := issuanceFixture()
	iss.AccessKey = ""

	err := inv.MarkIssued(iss, dec("10"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, entity.InvoiceStatusPending, inv.Status)
}

func TestMarkFailed(t *testing.T) {
	inv := entity.NewPendingInvoice("inv-1", entity.InvoiceKindService, "Ana", "1", []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: dec("10")}}, testNow)

	require.NoError(t, inv.MarkFailed("Erro na comunicação com SEFAZ. Tente novamente.", testNow))

	assert.Equal(t, entity.InvoiceStatusFailed, inv.Status)
	assert.Nil(t, inv.Issuance)
	require.NoError(t, inv.CheckInvariants())

	err := inv.MarkIssued(issuanceFixture(), dec("10"))
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestMarkFailed_EmptyMessage(t *testing.T) {
	inv := entity.NewPendingInvoice("inv-1", entity.InvoiceKindService, "Ana", "1", []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: dec("10")}}, testNow)
	assert.True(t, errors.Is(inv.MarkFailed("  ", testNow), domain.ErrInvalidInput))
}

func TestCheckInvariants_DetectsViolations(t *testing.T) {
	base := entity.NewPendingInvoice("inv-1", entity.InvoiceKindService, "Ana", "1", []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: dec("10")}}, testNow)

	issuedWithError := base.Clone()
	require.NoError(t, issuedWithError.MarkIssued(issuanceFixture(), dec("10")))
	issuedWithError.ErrorMessage = "boom"
	assert.Error(t, issuedWithError.CheckInvariants())

	failedWithIssuance := base.Clone()
	require.NoError(t, failedWithIssuance.MarkFailed("boom", testNow))
	iss := issuanceFixture()
	failedWithIssuance.Issuance = &iss
	assert.Error(t, failedWithIssuance.CheckInvariants())

	wrongTotal := base.Clone()
	wrongTotal.TotalValue = dec("11")
	assert.Error(t, wrongTotal.CheckInvariants())
}

func TestClone_IsDeep(t *testing.T) {
	inv := entity.NewPendingInvoice("inv-1", entity.InvoiceKindService, "Ana", "1", []entity.LineItem{{Description: "x", Quantity: 1, UnitPrice: dec("10")}}, testNow)
	require.NoError(t, inv.MarkIssued(issuanceFixture(), dec("10")))

	cp := inv.Clone()
	cp.Items[0].Description = "mutado"
	cp.Issuance.AccessKey = "0"

	assert.Equal(t, "x", inv.Items[0].Description)
	assert.NotEqual(t, "0", inv.Issuance.AccessKey)
}

func TestNewLedgerEntryForInvoice(t *testing.T) {
	inv := entity.NewPendingInvoice("inv-1", entity.InvoiceKindGoods, "Ana Souza", "1", []entity.LineItem{{Description: "x", Quantity: 3, UnitPrice: dec("9.99")}}, testNow)
	require.NoError(t, inv.MarkIssued(issuanceFixture(), inv.TotalValue))

	e := entity.NewLedgerEntryForInvoice("led-1", inv, testNow.Add(time.Hour))

	assert.Equal(t, "2024-03-15", e.Date)
	assert.Equal(t, entity.LedgerDirectionInflow, e.Direction)
	assert.Equal(t, entity.LedgerCategorySales, e.Category)
	assert.Equal(t, "Nota Fiscal NF-e - Ana Souza", e.Description)
	assert.True(t, dec("29.97").Equal(e.Amount))
	assert.Equal(t, "inv-1", e.SourceID)
	assert.Equal(t, entity.LedgerSourceInvoice, e.SourceType)
}
