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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/debugging"
	"github.com/cardinalhq/mediarunner/internal/gateway"
	"github.com/cardinalhq/mediarunner/internal/healthcheck"
)

func init() {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API handlers over HTTP",
		Long: `Serve the harvest and thumbnail API handlers over HTTP the way API Gateway
would invoke them, alongside /healthz, /readyz and /livez.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return runServe(port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")

	rootCmd.AddCommand(cmd)
}

func runServe(portOverride int) error {
	ctx, doneFx, err := setupTelemetry("mediarunner-serve", nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	health := healthcheck.New()

	d, err := loadDeps(ctx)
	if err != nil {
		health.SetStatus(healthcheck.StatusUnhealthy)
		return err
	}
	port := d.cfg.Server.Port
	if portOverride > 0 {
		port = portOverride
	}
	debugging.RunPprof(ctx, d.cfg.Server.PprofPort)

	routes, err := apiRoutes(ctx, d)
	if err != nil {
		return err
	}
	addReadyChecks(health, d.cfg, d.aws.Region())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           gateway.NewMux(routes, health),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP gateway", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	health.SetStatus(healthcheck.StatusHealthy)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		health.SetStatus(healthcheck.StatusUnhealthy)
		return fmt.Errorf("http gateway failed: %w", err)
	}

	slog.Info("Shutting down HTTP gateway")
	health.SetStatus(healthcheck.StatusUnhealthy)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func apiRoutes(ctx context.Context, d *deps) ([]gateway.Route, error) {
	submitter, err := d.submitter(ctx)
	if err != nil {
		return nil, err
	}
	viewer, err := d.viewer(ctx)
	if err != nil {
		return nil, err
	}
	return []gateway.Route{
		{Pattern: "POST /harvest", Handler: submitter.Handle},
		{Pattern: "GET /thumbnails/{channelId}", Handler: viewer.Handle},
	}, nil
}

// addReadyChecks reports the server not ready while a binding the API
// handlers need is unset. region is the one AWS clients resolve to.
func addReadyChecks(health *healthcheck.Checker, cfg *config.Config, region string) {
	required := map[string]string{
		"aws.region":                 region,
		"harvest.destination_bucket": cfg.Harvest.DestinationBucket,
		"harvest.role_arn":           cfg.Harvest.RoleARN,
		"thumbnails.bucket":          cfg.Thumbnails.Bucket,
	}
	for key, value := range required {
		health.AddReadyCheck(key, func() error {
			if value == "" {
				return fmt.Errorf("%s is not set", key)
			}
			return nil
		})
	}
}
