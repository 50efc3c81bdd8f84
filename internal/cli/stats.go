package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/lead-dispatch/internal/bootstrap"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <broker-id>",
		Short: "Print a broker's SLA statistics",
		Args:  cobra.ExactArgs(1),
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

			stats, err := app.Dispatch.BrokerStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "broker:              %s\n", stats.BrokerID)
			_, _ = fmt.Fprintf(out, "received:            %d\n", stats.Received)
			_, _ = fmt.Fprintf(out, "expired:             %d\n", stats.Expired)
			_, _ = fmt.Fprintf(out, "accepted (SLA):      %d\n", stats.Accepted)
			_, _ = fmt.Fprintf(out, "accepted within SLA: %d\n", stats.AcceptedWithinSLA)
			_, _ = fmt.Fprintf(out, "compliance rate:     %.2f%%\n", stats.ComplianceRate*100)
			return nil
		},
	}
}
