// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	harvestCmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest job maintenance",
	}

	var (
		queueURL string
		limit    int
	)
	redriveCmd := &cobra.Command{
		Use:   "redrive",
		Short: "Replay harvest completion events from the dead-letter queue",
		RunE: func(c *cobra.Command, _ []string) error {
			return runRedrive(queueURL, limit)
		},
	}
	redriveCmd.Flags().StringVar(&queueURL, "queue-url", "", "Dead-letter queue URL (overrides harvest.dlq_url)")
	redriveCmd.Flags().IntVar(&limit, "max", 0, "Maximum messages to process (overrides harvest.redrive_max)")

	harvestCmd.AddCommand(redriveCmd)
	rootCmd.AddCommand(harvestCmd)
}

func runRedrive(queueURL string, limit int) error {
	ctx, doneFx, err := setupTelemetry("mediarunner-redrive", nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	if queueURL == "" {
		queueURL = d.cfg.Harvest.DLQURL
	}
	if limit <= 0 {
		limit = d.cfg.Harvest.RedriveMax
	}

	r, err := d.redriver(ctx, queueURL)
	if err != nil {
		return err
	}
	result, err := r.Redrive(ctx, limit)
	if err != nil {
		return err
	}
	if result.Retained > 0 {
		return fmt.Errorf("%d of %d messages were left on the queue", result.Retained, result.Received)
	}
	return nil
}
