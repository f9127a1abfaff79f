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

package channels

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	startCounter  metric.Int64Counter
	reportCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/mediarunner/internal/channels")

	var err error
	startCounter, err = meter.Int64Counter(
		"mediarunner.channels.start_total",
		metric.WithDescription("Count of channel start requests by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create start_total counter: %w", err))
	}

	reportCounter, err = meter.Int64Counter(
		"mediarunner.channels.reports_sent_total",
		metric.WithDescription("Count of running channel reports published"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create reports_sent_total counter: %w", err))
	}
}
