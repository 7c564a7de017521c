package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/nota-fiscal-api/docs"
	"github.com/jhoicas/nota-fiscal-api/internal/bootstrap"
	httpRouter "github.com/jhoicas/nota-fiscal-api/internal/interfaces/http"
	"github.com/jhoicas/nota-fiscal-api/pkg/config"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

// @title        Nota Fiscal API
// @version      1.0
// @description  Emisión de notas fiscales (NF-e / NFS-e) ante la SEFAZ con conciliación del resultado y asiento en el flujo de caja.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	container, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer container.Close()

	// La SEFAZ puede tardar hasta SEFAZ_TIMEOUT; la respuesta de emisión espera el resultado.
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.SEFAZ.Timeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Nota Fiscal API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		IntakeUC:    container.IntakeUC,
		EmissionUC:  container.EmissionUC,
		QueryUC:     container.QueryUC,
		LedgerUC:    container.LedgerUC,
		PDFUC:       container.PDFUC,
		JWTSecret:   cfg.JWT.Secret,
		Metrics:     container.Registry,
		ServiceName: cfg.App.Name,
		Log:         log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
