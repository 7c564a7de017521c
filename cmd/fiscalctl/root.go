package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/jhoicas/nota-fiscal-api/internal/bootstrap"
	"github.com/jhoicas/nota-fiscal-api/pkg/config"
	"github.com/jhoicas/nota-fiscal-api/pkg/logger"
)

var version = "1.0.0"

// cliEnv estado compartido entre subcomandos (se llena en PersistentPreRunE).
type cliEnv struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}
	root := &cobra.Command{
		Use:   "fiscalctl",
		Short: "Operación del servicio de notas fiscales",
		Long: `fiscalctl opera sobre la misma base de datos que la API:

  migrate  aplica o revierte las migraciones goose
  emit     envía una nota pending a la SEFAZ y concilia el resultado
  ledger   registra los asientos faltantes de notas ya emitidas
  token    emite un token Bearer para la API (requiere JWT_SECRET)

La configuración se lee de las mismas variables de entorno que la API (DB_*, SEFAZ_*, ISSUER_*, JWT_*).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			env.cfg = cfg
			env.log = logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: cmd.ErrOrStderr()})
			return nil
		},
	}
	root.AddCommand(newMigrateCmd(env), newEmitCmd(env), newLedgerCmd(env), newTokenCmd(env))
	return root
}

// container construye las dependencias con la configuración ya cargada.
func (e *cliEnv) container(ctx context.Context) (*bootstrap.Container, error) {
	return bootstrap.Build(ctx, e.cfg, e.log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
