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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var payloadPath string

	cmd := &cobra.Command{
		Use:   "invoke <handler>",
		Short: "Run a handler once with a JSON payload",
		Long: "Run a handler once locally, reading the event payload from a file\n" +
			"or stdin and writing the handler's JSON response to stdout.\n\n" + handlerUsage(),
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runInvoke(args[0], payloadPath, c.InOrStdin(), c.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&payloadPath, "payload", "p", "-", "Path to the JSON event payload, or - for stdin")

	rootCmd.AddCommand(cmd)
}

func runInvoke(name, payloadPath string, stdin io.Reader, stdout io.Writer) error {
	ctx, doneFx, err := setupTelemetry("mediarunner-invoke", nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	payload, err := readPayload(payloadPath, stdin)
	if err != nil {
		return err
	}

	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	h, err := buildHandler(ctx, d, name)
	if err != nil {
		return err
	}

	out, err := h.Invoke(ctx, payload)
	if err != nil {
		return err
	}
	return writeJSON(stdout, out)
}

// readPayload reads the event from path, or from stdin when path is "-".
// An empty payload is sent as the JSON object {}.
func readPayload(path string, stdin io.Reader) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return b, nil
}

func writeJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
