package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/nota-fiscal-api/internal/application/fiscal"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	IntakeUC    *fiscal.IntakeUseCase
	EmissionUC  *fiscal.EmissionUseCase
	QueryUC     *fiscal.QueryUseCase
	LedgerUC    *fiscal.LedgerUseCase
	PDFUC       *fiscal.PDFUseCase
	JWTSecret   string              // vacío = sin guardia de token
	Metrics     prometheus.Gatherer // nil = sin /metrics
	ServiceName string
	Log         *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	// El front-end llama desde otro origen; el preflight responde sin cuerpo.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	emissionHandler := NewEmissionHandler(deps.EmissionUC, log.Component("http.emission"))
	api.Post("/emitir-nota-fiscal", emissionHandler.Emit)

	invoices := api.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.IntakeUC, deps.QueryUC, deps.PDFUC, log.Component("http.invoices"))
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/", invoiceHandler.List)
	invoices.Get("/summary", invoiceHandler.Summary)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/pdf", invoiceHandler.DownloadPDF)
	invoices.Post("/:id/emit", emissionHandler.EmitByID)
	invoices.Post("/:id/reissue", invoiceHandler.Reissue)

	ledger := api.Group("/ledger")
	ledgerHandler := NewLedgerHandler(deps.LedgerUC, log.Component("http.ledger"))
	ledger.Post("/backfill", ledgerHandler.Backfill)
}
