package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spec-kit/lead-dispatch/internal/persistence"
	"github.com/spec-kit/lead-dispatch/internal/settings"
)

var settingFields = []string{
	settings.FieldExternalSLAMinutes,
	settings.FieldInternalSLAMinutes,
	settings.FieldMaxExternalAttempts,
	settings.FieldMaxInternalAttempts,
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change the live dispatch settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the settings the next dispatch will use",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, closeFn, err := settingsProvider()
			if err != nil {
				return err
			}
			defer closeFn()
			s := provider.Get(cmd.Context())
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s=%d\n", settings.FieldExternalSLAMinutes, s.ExternalSLAMinutes)
			_, _ = fmt.Fprintf(out, "%s=%d\n", settings.FieldInternalSLAMinutes, s.InternalSLAMinutes)
			_, _ = fmt.Fprintf(out, "%s=%d\n", settings.FieldMaxExternalAttempts, s.MaxExternalAttempts)
			_, _ = fmt.Fprintf(out, "%s=%d\n", settings.FieldMaxInternalAttempts, s.MaxInternalAttempts)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <field> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !knownField(args[0]) {
				return fmt.Errorf("unknown field %q, expected one of %v", args[0], settingFields)
			}
			value, err := strconv.Atoi(args[1])
			if err != nil || value <= 0 {
				return fmt.Errorf("value must be a positive integer, got %q", args[1])
			}
			provider, closeFn, err := settingsProvider()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := provider.Set(cmd.Context(), args[0], value); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s=%d\n", args[0], value)
			return nil
		},
	})
	return cmd
}

func settingsProvider() (*settings.RedisProvider, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	rdb := persistence.NewRedis(cfg.Redis, logger)
	return settings.NewRedisProvider(rdb.Client, cfg.Dispatch, logger), rdb.Close, nil
}

func knownField(name string) bool {
	for _, f := range settingFields {
		if f == name {
			return true
		}
	}
	return false
}
