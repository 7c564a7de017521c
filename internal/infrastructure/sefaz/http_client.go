package sefaz

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	appfiscal "github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/fiscal"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// cStat de autorización de uso.
const statusAuthorized = "100"

var _ appfiscal.AuthorityClient = (*HTTPAuthority)(nil)

// HTTPConfig parámetros del gateway SEFAZ.
type HTTPConfig struct {
	URL             string
	Timeout         time.Duration
	UF              string
	IssuerCNPJ      string
	Certificate     tls.Certificate // A1 para mTLS; vacío = sin certificado de cliente
	BreakerFailures int             // fallos consecutivos que abren el circuito
	BreakerTimeout  time.Duration   // tiempo en abierto antes de probar de nuevo
}

// HTTPAuthority envía la nota a un gateway SEFAZ por HTTP/JSON.
// Fallos de red, respuestas no 2xx, cuerpos ilegibles y circuito abierto se
// convierten en Rejected con el mensaje de fallo de comunicación.
type HTTPAuthority struct {
	cfg        HTTPConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *logger.Logger
}

// NewHTTPAuthority construye el cliente con timeout de red y circuit breaker.
func NewHTTPAuthority(cfg HTTPConfig, log *logger.Logger) *HTTPAuthority {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if HasKey(cfg.Certificate) {
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{cfg.Certificate},
			MinVersion:   tls.VersionTLS12,
		}
	}
	l := log.Component("sefaz-http")
	return &HTTPAuthority{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "sefaz-gateway",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker cambió de estado")
			},
		}),
		log: l,
	}
}

// ── Estructuras del gateway ───────────────────────────────────────────────────

type gatewayRequest struct {
	InvoiceID  string          `json:"invoice_id"`
	Model      string          `json:"mod"`
	Series     string          `json:"serie"`
	UF         string          `json:"cUF"`
	IssuerCNPJ string          `json:"emit_cnpj"`
	Customer   gatewayCustomer `json:"dest"`
	Items      []gatewayItem   `json:"det"`
	Total      decimal.Decimal `json:"vNF"`
}

type gatewayCustomer struct {
	Name  string `json:"xNome"`
	TaxID string `json:"doc"`
}

type gatewayItem struct {
	Description string          `json:"xProd"`
	Quantity    int             `json:"qCom"`
	UnitPrice   decimal.Decimal `json:"vUnCom"`
	CFOP        string          `json:"CFOP,omitempty"`
	NCM         string          `json:"NCM,omitempty"`
}

type gatewayResponse struct {
	Status         string    `json:"cStat"`
	Reason         string    `json:"xMotivo"`
	DocumentNumber string    `json:"nNF"`
	Series         string    `json:"serie"`
	AccessKey      string    `json:"chNFe"`
	Protocol       string    `json:"nProt"`
	ReceivedAt     time.Time `json:"dhRecbto"`
}

// errUnavailable fallo de transporte que cuenta para el circuit breaker.
var errUnavailable = errors.New("sefaz: gateway no disponible")

// Submit implementa appfiscal.AuthorityClient.
func (c *HTTPAuthority) Submit(ctx context.Context, req appfiscal.SubmissionRequest) appfiscal.Outcome {
	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		c.log.Error().Err(err).Str("invoice_id", req.InvoiceID).Msg("serializar solicitud")
		return appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("invoice_id", req.InvoiceID).Msg("fallo de comunicación con la SEFAZ")
		return appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}
	}
	return c.toOutcome(result.(*gatewayResponse))
}

func (c *HTTPAuthority) buildRequest(req appfiscal.SubmissionRequest) gatewayRequest {
	model := fiscal.ModelNFSe
	if req.Kind == entity.InvoiceKindGoods {
		model = fiscal.ModelNFe
	}
	items := make([]gatewayItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, gatewayItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			CFOP:        it.CFOP,
			NCM:         it.NCM,
		})
	}
	return gatewayRequest{
		InvoiceID:  req.InvoiceID,
		Model:      model,
		Series:     fiscal.Series,
		UF:         c.cfg.UF,
		IssuerCNPJ: fiscal.OnlyDigits(c.cfg.IssuerCNPJ),
		Customer:   gatewayCustomer{Name: req.CustomerName, TaxID: req.CustomerTaxID},
		Items:      items,
		Total:      req.TotalValue,
	}
}

// post hace la llamada HTTP. Solo los fallos de transporte y 5xx cuentan como error
// para el breaker; un 4xx se devuelve como respuesta sin cStat.
func (c *HTTPAuthority) post(ctx context.Context, payload []byte) (*gatewayResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sefaz: crear request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", errUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: HTTP %d", errUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("respuesta no 2xx del gateway SEFAZ")
		return &gatewayResponse{}, nil
	}

	var out gatewayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warn().Err(err).Msg("respuesta ilegible del gateway SEFAZ")
		return &gatewayResponse{}, nil
	}
	return &out, nil
}

func (c *HTTPAuthority) toOutcome(r *gatewayResponse) appfiscal.Outcome {
	switch {
	case r.Status == statusAuthorized:
		series := r.Series
		if series == "" {
			series = fiscal.Series
		}
		at := r.ReceivedAt
		if at.IsZero() {
			at = time.Now()
		}
		return appfiscal.Issued{
			DocumentNumber:    r.DocumentNumber,
			Series:            series,
			AccessKey:         r.AccessKey,
			AuthorityProtocol: r.Protocol,
			AuthorizedAt:      at,
		}
	case r.Status != "" && strings.TrimSpace(r.Reason) != "":
		return appfiscal.Rejected{ErrorMessage: fmt.Sprintf("Rejeição %s: %s", r.Status, strings.TrimSpace(r.Reason))}
	default:
		return appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}
	}
}
