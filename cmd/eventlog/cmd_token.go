package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/eventlog/internal/delivery"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a SAS token for the configured Event Hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}

			if err := cfg.ValidateSink(); err != nil {
				return fmt.Errorf("event hub sink: %w", err)
			}

			if ttl <= 0 {
				ttl = cfg.Sink.TokenTTL
			}

			signer, err := delivery.NewTokenSigner(cfg.Sink.Endpoint, cfg.Sink.PrimaryKey.Value(), cfg.Sink.PolicyName, ttl)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), signer.Token())
			return err
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default from EVENTLOG_SINK_TOKEN_TTL)")
	return cmd
}
