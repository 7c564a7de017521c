package main

import (
	"github.com/spf13/cobra"
)

func newLedgerCmd(env *cliEnv) *cobra.Command {
	ledger := &cobra.Command{
		Use:   "ledger",
		Short: "Operaciones sobre el flujo de caja",
	}

	var limit int
	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Registra los asientos faltantes de notas ya emitidas",
		Example: `  fiscalctl ledger backfill
  fiscalctl ledger backfill --limit 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := env.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.LedgerUC.Backfill(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	backfill.Flags().IntVar(&limit, "limit", 0, "máximo de notas a procesar (0 = lote por defecto)")

	ledger.AddCommand(backfill)
	return ledger
}
