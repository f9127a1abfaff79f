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
	"errors"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// lambdaHandlerEnv is set by the Lambda runtime to the function's configured
// handler string.
const lambdaHandlerEnv = "_HANDLER"

func init() {
	cmd := &cobra.Command{
		Use:   "lambda [handler]",
		Short: "Run a handler under the AWS Lambda runtime",
		Long: "Run a handler under the AWS Lambda runtime. When no handler is named,\n" +
			"the function's configured handler (" + lambdaHandlerEnv + ") is used.\n\n" + handlerUsage(),
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			name := os.Getenv(lambdaHandlerEnv)
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return errors.New("no handler named and " + lambdaHandlerEnv + " is not set")
			}
			return runLambda(name)
		},
	}

	rootCmd.AddCommand(cmd)
}

func runLambda(name string) error {
	servicename := "mediarunner-" + name
	addlAttrs := attribute.NewSet(
		attribute.String("handler", name),
	)
	ctx, doneFx, err := setupTelemetry(servicename, &addlAttrs)
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
	h, err := buildHandler(ctx, d, name)
	if err != nil {
		return err
	}

	slog.Info("Starting Lambda handler", slog.String("handler", name))
	lambda.StartWithOptions(h, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}))
	return nil
}
