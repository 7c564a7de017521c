package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jhoicas/nota-fiscal-api/pkg/jwt"
)

func newTokenCmd(env *cliEnv) *cobra.Command {
	var (
		operator string
		minutes  int
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Emite un token Bearer firmado con JWT_SECRET para llamar a la API",
		Example: `  fiscalctl token integracion-erp
  fiscalctl token caixa-01 --operator maria --ttl 60`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.cfg.JWT.Secret == "" {
				return fmt.Errorf("JWT_SECRET no configurado: la API no exige token")
			}
			if minutes <= 0 {
				return fmt.Errorf("--ttl debe ser mayor que 0")
			}
			subject := strings.TrimSpace(args[0])
			if subject == "" {
				return fmt.Errorf("subject vacío")
			}
			token, err := jwt.Generate(env.cfg.JWT.Secret, subject, operator, env.cfg.JWT.Issuer, minutes)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operador registrado en el claim operator")
	cmd.Flags().IntVar(&minutes, "ttl", 24*60, "vigencia del token en minutos")
	return cmd
}
