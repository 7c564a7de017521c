package fiscal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
)

// TransientAuthorityMessage mensaje fijo para fallos de comunicación con la SEFAZ.
const TransientAuthorityMessage = "Erro na comunicação com SEFAZ. Tente novamente."

// SubmissionRequest datos que viajan a la autoridad tributaria.
type SubmissionRequest struct {
	InvoiceID     string
	Kind          entity.InvoiceKind
	CustomerName  string
	CustomerTaxID string
	TotalValue    decimal.Decimal
	Items         []entity.LineItem
}

// Outcome resultado etiquetado de un envío: Issued o Rejected.
// Un rechazo es un valor, no un error.
type Outcome interface {
	outcomeStatus() entity.InvoiceStatus
}

// Issued la SEFAZ autorizó el documento.
type Issued struct {
	DocumentNumber    string
	Series            string
	AccessKey         string
	AuthorityProtocol string
	RenderedDocument  string
	AuthorizedAt      time.Time
	TotalValue        decimal.Decimal
}

func (Issued) outcomeStatus() entity.InvoiceStatus { return entity.InvoiceStatusIssued }

// Issuance convierte el resultado en los datos persistidos de la nota.
func (o Issued) Issuance(issuedAt time.Time) entity.Issuance {
	return entity.Issuance{
		DocumentNumber:    o.DocumentNumber,
		Series:            o.Series,
		AccessKey:         o.AccessKey,
		AuthorityProtocol: o.AuthorityProtocol,
		RenderedDocument:  o.RenderedDocument,
		IssuedAt:          issuedAt,
	}
}

// Rejected la SEFAZ rechazó o no respondió.
type Rejected struct {
	ErrorMessage string
}

func (Rejected) outcomeStatus() entity.InvoiceStatus { return entity.InvoiceStatusFailed }

// OutcomeStatus estado terminal al que lleva un resultado ("" si es nil).
func OutcomeStatus(o Outcome) entity.InvoiceStatus {
	if o == nil {
		return ""
	}
	return o.outcomeStatus()
}

// AuthorityClient puerto hacia la autoridad tributaria (simulada o real).
// Los fallos de comunicación se devuelven como Rejected, nunca como panic ni error.
type AuthorityClient interface {
	Submit(ctx context.Context, req SubmissionRequest) Outcome
}

// DocumentRenderer genera el XML fiscal del documento autorizado.
type DocumentRenderer interface {
	Render(inv *entity.Invoice, issued Issued) (string, error)
}

// IssuerInfo datos del emisor que aparecen en el DANFE.
type IssuerInfo struct {
	CNPJ string
	Name string
}

// InvoicePDFGenerator genera la representación gráfica (DANFE simplificado).
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, inv *entity.Invoice, issuer IssuerInfo) ([]byte, error)
}

// EmissionMetrics puerto de métricas (implementado por pkg/metrics).
type EmissionMetrics interface {
	InvoiceCreated(kind string)
	SubmissionCompleted(outcome string, d time.Duration)
	LedgerWriteFailed()
	LedgerBackfilled(n int)
}

type nopMetrics struct{}

func (nopMetrics) InvoiceCreated(string)                     {}
func (nopMetrics) SubmissionCompleted(string, time.Duration) {}
func (nopMetrics) LedgerWriteFailed()                        {}
func (nopMetrics) LedgerBackfilled(int)                      {}

func metricsOrNop(m EmissionMetrics) EmissionMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
