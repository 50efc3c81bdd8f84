package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/lead-dispatch/internal/bootstrap"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single expiry sweep cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			app, err := bootstrap.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if result.Skipped {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "another replica holds the sweeper lease; nothing done")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "overdue=%d expired=%d failed=%d recovered=%d\n",
				result.Overdue, result.Expired, result.Failed, result.Recovered)
			return nil
		},
	}
}
