package bootstrap

import (
	"crypto/tls"

	"github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/infrastructure/sefaz"
	"github.com/jhoicas/nota-fiscal-api/pkg/config"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// NewAuthority elige el cliente SEFAZ según SEFAZ_MODE.
func NewAuthority(cfg *config.Config, cert tls.Certificate, log *logger.Logger) fiscal.AuthorityClient {
	sim := sefaz.SimulatedConfig{
		SuccessRate: cfg.SEFAZ.SuccessRate,
		Delay:       cfg.SEFAZ.SimulatedDelay,
		UF:          cfg.SEFAZ.UF,
		IssuerCNPJ:  cfg.Issuer.CNPJ,
	}
	switch cfg.SEFAZ.Mode {
	case config.SEFAZModeHTTP:
		return sefaz.NewHTTPAuthority(sefaz.HTTPConfig{
			URL:             cfg.SEFAZ.URL,
			Timeout:         cfg.SEFAZ.Timeout,
			UF:              cfg.SEFAZ.UF,
			IssuerCNPJ:      cfg.Issuer.CNPJ,
			Certificate:     cert,
			BreakerFailures: cfg.SEFAZ.BreakerFailures,
			BreakerTimeout:  cfg.SEFAZ.BreakerTimeout,
		}, log)
	case config.SEFAZModeApprove:
		return sefaz.NewStaticAuthority(true, sim, log)
	case config.SEFAZModeReject:
		return sefaz.NewStaticAuthority(false, sim, log)
	default:
		return sefaz.NewSimulatedAuthority(sim, nil, log)
	}
}
