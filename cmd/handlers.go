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
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

// handlerBuilder constructs a Lambda handler function: any signature
// accepted by lambda.NewHandler.
type handlerBuilder func(ctx context.Context, d *deps) (any, error)

type handlerEntry struct {
	short string
	build handlerBuilder
}

var handlerRegistry = map[string]handlerEntry{
	"harvest-start": {
		short: "Submit a harvest job from an API Gateway request",
		build: func(ctx context.Context, d *deps) (any, error) {
			s, err := d.submitter(ctx)
			if err != nil {
				return nil, err
			}
			return s.Handle, nil
		},
	},
	"harvest-complete": {
		short: "Register a finished harvest job as a VOD asset",
		build: func(ctx context.Context, d *deps) (any, error) {
			c, err := d.completer(ctx)
			if err != nil {
				return nil, err
			}
			return c.Handle, nil
		},
	},
	"harvest-complete-sqs": {
		short: "Register finished harvest jobs delivered through SQS",
		build: func(ctx context.Context, d *deps) (any, error) {
			c, err := d.completer(ctx)
			if err != nil {
				return nil, err
			}
			return c.HandleSQS, nil
		},
	},
	"thumbnails-prune": {
		short: "Delete all but the newest thumbnails from the bucket",
		build: func(ctx context.Context, d *deps) (any, error) {
			p, err := d.pruner(ctx)
			if err != nil {
				return nil, err
			}
			return p.Handle, nil
		},
	},
	"thumbnails-view": {
		short: "Render the thumbnail page for a running channel",
		build: func(ctx context.Context, d *deps) (any, error) {
			v, err := d.viewer(ctx)
			if err != nil {
				return nil, err
			}
			return v.Handle, nil
		},
	},
	"channel-start": {
		short: "Start a MediaLive channel once it has been created",
		build: func(ctx context.Context, d *deps) (any, error) {
			s, err := d.starter(ctx)
			if err != nil {
				return nil, err
			}
			return s.Handle, nil
		},
	},
	"channel-report": {
		short: "Publish a summary of running MediaLive channels",
		build: func(ctx context.Context, d *deps) (any, error) {
			r, err := d.report(ctx)
			if err != nil {
				return nil, err
			}
			return r.Handle, nil
		},
	},
	"endpoint-publish": {
		short: "Store an origin endpoint's CMAF manifest URL in SSM",
		build: func(ctx context.Context, d *deps) (any, error) {
			p, err := d.publisher(ctx)
			if err != nil {
				return nil, err
			}
			return p.PublishOrigin, nil
		},
	},
	"channel-ingest-publish": {
		short: "Store a MediaPackage v2 channel's ingest URLs in SSM",
		build: func(ctx context.Context, d *deps) (any, error) {
			p, err := d.publisher(ctx)
			if err != nil {
				return nil, err
			}
			return p.PublishIngest, nil
		},
	},
}

// handlerNames returns the registered handler names, sorted.
func handlerNames() []string {
	names := make([]string, 0, len(handlerRegistry))
	for name := range handlerRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func handlerUsage() string {
	var b strings.Builder
	b.WriteString("Handlers:\n")
	for _, name := range handlerNames() {
		fmt.Fprintf(&b, "  %-24s %s\n", name, handlerRegistry[name].short)
	}
	return b.String()
}

// buildHandler looks up name and wraps the handler it builds so that each
// invocation is timed and failures are logged.
func buildHandler(ctx context.Context, d *deps, name string) (lambda.Handler, error) {
	entry, ok := handlerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown handler %q, expected one of: %s", name, strings.Join(handlerNames(), ", "))
	}
	fn, err := entry.build(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to build handler %s: %w", name, err)
	}
	return &instrumented{name: name, next: lambda.NewHandler(fn)}, nil
}

type instrumented struct {
	name string
	next lambda.Handler
}

func (h *instrumented) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	ll := logctx.FromContext(ctx).With(slog.String("handler", h.name))
	start := time.Now()
	ll.Debug("Invocation started", slog.Int("payloadBytes", len(payload)))

	out, err := h.next.Invoke(ctx, payload)
	recordInvocation(ctx, h.name, start, err)
	if err != nil {
		ll.Error("Invocation failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
		return out, err
	}
	ll.Debug("Invocation finished", slog.Duration("elapsed", time.Since(start)))
	return out, nil
}
