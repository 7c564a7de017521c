// Package bootstrap arma el grafo de dependencias compartido por la API y el CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/internal/domain/repository"
	"github.com/jhoicas/nota-fiscal-api/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/nota-fiscal-api/internal/infrastructure/pdf"
	"github.com/jhoicas/nota-fiscal-api/internal/infrastructure/postgres"
	"github.com/jhoicas/nota-fiscal-api/internal/infrastructure/sefaz"
	"github.com/jhoicas/nota-fiscal-api/pkg/config"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
	"github.com/jhoicas/nota-fiscal-api/pkg/metrics"
)

// Container casos de uso listos para usar más los recursos a liberar.
type Container struct {
	Pool     *pgxpool.Pool // nil con DB_DRIVER=memory
	Registry *prometheus.Registry

	IntakeUC   *fiscal.IntakeUseCase
	EmissionUC *fiscal.EmissionUseCase
	QueryUC    *fiscal.QueryUseCase
	LedgerUC   *fiscal.LedgerUseCase
	PDFUC      *fiscal.PDFUseCase
}

// Close libera el pool de PostgreSQL si existe.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Build conecta persistencia, SEFAZ, renderer y métricas según la configuración.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewEmissionMetrics(c.Registry)

	var (
		invoiceRepo repository.InvoiceRepository
		ledgerRepo  repository.LedgerRepository
	)
	switch cfg.DB.Driver {
	case "memory":
		store := memory.NewStore()
		invoiceRepo, ledgerRepo = store.Invoices(), store.Ledger()
		log.Warn().Msg("DB_DRIVER=memory: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		c.Pool = pool
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(ctx, pool, "up"); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migraciones: %w", err)
			}
			log.Info().Msg("migraciones aplicadas")
		}
		invoiceRepo, ledgerRepo = postgres.NewInvoiceRepository(pool), postgres.NewLedgerRepository(pool)
	}

	cert, err := sefaz.LoadFromP12(cfg.SEFAZ.CertPath, cfg.SEFAZ.CertPassword)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("certificado A1: %w", err)
	}
	var signer *sefaz.Signer
	if sefaz.HasKey(cert) {
		if signer, err = sefaz.NewSigner(cert); err != nil {
			c.Close()
			return nil, fmt.Errorf("firmador NF-e: %w", err)
		}
	}

	environment := sefaz.EnvironmentHomologation
	if cfg.App.Env == "production" {
		environment = sefaz.EnvironmentProduction
	}
	renderer := sefaz.NewXMLRenderer(sefaz.RendererConfig{
		IssuerCNPJ:  cfg.Issuer.CNPJ,
		IssuerName:  cfg.Issuer.Name,
		Environment: environment,
	}, signer)

	authority := NewAuthority(cfg, cert, log)
	log.Info().Str("sefaz_mode", cfg.SEFAZ.Mode).Bool("signed", signer != nil).Msg("autoridad tributaria configurada")

	submitter := fiscal.NewSubmitter(invoiceRepo, authority, renderer, log)
	reconciler := fiscal.NewReconciler(invoiceRepo, ledgerRepo, m, log)

	c.IntakeUC = fiscal.NewIntakeUseCase(invoiceRepo, m, log)
	c.EmissionUC = fiscal.NewEmissionUseCase(submitter, reconciler, m, log)
	c.QueryUC = fiscal.NewQueryUseCase(invoiceRepo)
	c.LedgerUC = fiscal.NewLedgerUseCase(invoiceRepo, ledgerRepo, m, log)
	c.PDFUC = fiscal.NewPDFUseCase(invoiceRepo, infrapdf.NewMarotoPDFGenerator(), fiscal.IssuerInfo{
		CNPJ: cfg.Issuer.CNPJ,
		Name: cfg.Issuer.Name,
	})
	return c, nil
}
