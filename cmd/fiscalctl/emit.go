package main

import (
	"github.com/spf13/cobra"
)

func newEmitCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "emit <invoice-id>",
		Short: "Envía una nota pending a la SEFAZ y concilia el resultado",
		Long: `Equivale a POST /api/emitir-nota-fiscal. Imprime el sobre {success, message, data}.
Un rechazo de la SEFAZ no es un error del comando: queda registrado en la nota.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := env.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.EmissionUC.Emit(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}
