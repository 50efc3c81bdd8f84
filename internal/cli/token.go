package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/lead-dispatch/internal/auth"
	"github.com/spec-kit/lead-dispatch/internal/domain"
)

func newTokenCmd() *cobra.Command {
	var brokerID, operator string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a broker or an operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (brokerID == "") == (operator == "") {
				return errors.New("exactly one of --broker or --operator is required")
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			subject, id := domain.SubjectTypeBroker, brokerID
			if operator != "" {
				subject, id = domain.SubjectTypeOperator, operator
			}
			tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tm.GenerateToken(id, subject)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&brokerID, "broker", "", "broker id")
	cmd.Flags().StringVar(&operator, "operator", "", "operator name")
	return cmd
}
