package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/nota-fiscal-api/internal/infrastructure/postgres"
)

func newMigrateCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|version]",
		Short: "Ejecuta las migraciones de PostgreSQL",
		Example: `  fiscalctl migrate up
  fiscalctl migrate status`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cobra.OnlyValidArgs(cmd, args); err != nil {
				return err
			}
			if env.cfg.DB.Driver != "postgres" {
				return fmt.Errorf("migrate requiere DB_DRIVER=postgres (actual: %s)", env.cfg.DB.Driver)
			}
			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, env.cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(ctx, pool, args[0]); err != nil {
				return err
			}
			env.log.Info().Str("command", args[0]).Msg("migración completada")
			return nil
		},
	}
	return cmd
}
