package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/eventlog/internal/delivery"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored events by delivery state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			st, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			return output(cmd.OutOrStdout(), stats,
				[]string{"PENDING", "SYNCED", "FAILED"},
				[][]string{{
					strconv.FormatInt(stats.Pending, 10),
					strconv.FormatInt(stats.Synced, 10),
					strconv.FormatInt(stats.Failed, 10),
				}})
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <uuid>",
		Short: "Print one event as it is sent to the Event Hub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			st, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			ev, err := st.GetByUUID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("show %s: %w", args[0], err)
			}

			msg, err := delivery.NewMessage(ev)
			if err != nil {
				return err
			}

			state := "pending"
			switch {
			case ev.SyncedAt != nil:
				state = "synced " + ev.SyncedAt.UTC().Format(time.RFC3339)
			case ev.SyncFailedAt != nil:
				state = "failed " + ev.SyncFailedAt.UTC().Format(time.RFC3339)
			}

			return output(cmd.OutOrStdout(), msg,
				[]string{"UUID", "TYPE", "CREATED", "STATE"},
				[][]string{{msg.UUID, msg.Type, msg.CreatedAt, state}})
		},
	}
}
