package sefaz

import (
	"context"
	"math/rand"
	"sync"
	"time"

	appfiscal "github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/entity"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/fiscal"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// Valores por defecto de la SEFAZ simulada.
const (
	DefaultSuccessRate    = 0.9
	DefaultSimulatedDelay = time.Second
)

var _ appfiscal.AuthorityClient = (*SimulatedAuthority)(nil)

// SimulatedConfig parámetros de la SEFAZ simulada.
type SimulatedConfig struct {
	SuccessRate float64       // probabilidad de autorización [0,1]
	Delay       time.Duration // latencia simulada
	UF          string        // cUF del emisor
	IssuerCNPJ  string
}

// SimulatedAuthority responde como la SEFAZ: autoriza con probabilidad SuccessRate
// y en caso contrario devuelve el fallo de comunicación fijo.
// La espera siempre se completa, aunque el contexto del llamador se cancele.
type SimulatedAuthority struct {
	cfg   SimulatedConfig
	log   *logger.Logger
	mu    sync.Mutex // *rand.Rand no es seguro para uso concurrente
	rnd   *rand.Rand
	now   func() time.Time
	sleep func(time.Duration)
}

// NewSimulatedAuthority crea la SEFAZ simulada. rnd nil usa una fuente basada en la hora.
func NewSimulatedAuthority(cfg SimulatedConfig, rnd *rand.Rand, log *logger.Logger) *SimulatedAuthority {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.SuccessRate < 0 || cfg.SuccessRate > 1 {
		cfg.SuccessRate = DefaultSuccessRate
	}
	return &SimulatedAuthority{
		cfg:   cfg,
		log:   log.Component("sefaz-simulada"),
		rnd:   rnd,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Submit implementa appfiscal.AuthorityClient.
func (a *SimulatedAuthority) Submit(_ context.Context, req appfiscal.SubmissionRequest) appfiscal.Outcome {
	if a.cfg.Delay > 0 {
		a.sleep(a.cfg.Delay)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rnd.Float64() >= a.cfg.SuccessRate {
		a.log.Debug().Str("invoice_id", req.InvoiceID).Msg("fallo de comunicación simulado")
		return appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}
	}

	now := a.now()
	number := fiscal.GenerateDocumentNumber(a.rnd)
	model := fiscal.ModelNFSe
	if req.Kind == entity.InvoiceKindGoods {
		model = fiscal.ModelNFe
	}
	key, err := fiscal.GenerateAccessKey(a.rnd, fiscal.AccessKeyParams{
		UF:             a.cfg.UF,
		IssuedAt:       now,
		IssuerCNPJ:     a.cfg.IssuerCNPJ,
		Model:          model,
		Series:         fiscal.Series,
		DocumentNumber: number,
	})
	if err != nil {
		a.log.Error().Err(err).Str("invoice_id", req.InvoiceID).Msg("no se pudo generar la chave de acesso")
		return appfiscal.Rejected{ErrorMessage: appfiscal.TransientAuthorityMessage}
	}
	return appfiscal.Issued{
		DocumentNumber:    number,
		Series:            fiscal.Series,
		AccessKey:         key,
		AuthorityProtocol: fiscal.GenerateProtocol(now, a.rnd),
		AuthorizedAt:      now,
	}
}
