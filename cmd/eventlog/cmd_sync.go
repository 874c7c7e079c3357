package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/eventlog/internal/delivery"
)

func newSyncCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Deliver one batch of unsynced events to the Event Hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if batchSize > 0 {
				cfg.Sweep.BatchSize = batchSize
			}

			st, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			sweeper, err := newSweeper(cfg, st, log)
			if err != nil {
				return err
			}

			res, err := sweeper.SweepOnce(ctx)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			return output(cmd.OutOrStdout(), res, sweepHeaders, sweepRows(res))
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Events to deliver (default from EVENTLOG_SWEEP_BATCH_SIZE)")
	return cmd
}

var sweepHeaders = []string{"REQUEUED", "ATTEMPTED", "SYNCED", "FAILED"}

func sweepRows(res delivery.SweepResult) [][]string {
	return [][]string{{
		strconv.FormatInt(res.Requeued, 10),
		strconv.Itoa(res.Attempted),
		strconv.Itoa(res.Synced),
		strconv.Itoa(res.Failed),
	}}
}

func newRequeueCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Return failed events to the unsynced queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}

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

			n, err := st.RequeueFailed(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("requeue: %w", err)
			}

			out := struct {
				Requeued int64 `json:"requeued"`
			}{n}

			return output(cmd.OutOrStdout(), out, []string{"REQUEUED"}, [][]string{{strconv.FormatInt(n, 10)}})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only requeue events that failed at least this long ago")
	return cmd
}
