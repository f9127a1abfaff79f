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

package thumbnails

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	pruneCounter       metric.Int64Counter
	prunedCounter      metric.Int64Counter
	viewCounter        metric.Int64Counter
	channelCacheLookup metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/mediarunner/internal/thumbnails")

	var err error
	pruneCounter, err = meter.Int64Counter(
		"mediarunner.thumbnails.prune_runs_total",
		metric.WithDescription("Count of thumbnail prune runs by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create prune_runs_total counter: %w", err))
	}

	prunedCounter, err = meter.Int64Counter(
		"mediarunner.thumbnails.pruned_total",
		metric.WithDescription("Count of thumbnail objects deleted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create pruned_total counter: %w", err))
	}

	viewCounter, err = meter.Int64Counter(
		"mediarunner.thumbnails.view_total",
		metric.WithDescription("Count of thumbnail page renders by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create view_total counter: %w", err))
	}

	channelCacheLookup, err = meter.Int64Counter(
		"mediarunner.thumbnails.channel_cache_lookups_total",
		metric.WithDescription("Count of channel description cache lookups by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create channel_cache_lookups_total counter: %w", err))
	}
}
