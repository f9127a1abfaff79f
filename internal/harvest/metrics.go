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

package harvest

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	submitCounter   metric.Int64Counter
	completeCounter metric.Int64Counter
	redriveCounter  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/mediarunner/internal/harvest")

	var err error
	submitCounter, err = meter.Int64Counter(
		"mediarunner.harvest.submit_total",
		metric.WithDescription("Count of harvest job submissions by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create submit_total counter: %w", err))
	}

	completeCounter, err = meter.Int64Counter(
		"mediarunner.harvest.complete_total",
		metric.WithDescription("Count of harvest completion events by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create complete_total counter: %w", err))
	}

	redriveCounter, err = meter.Int64Counter(
		"mediarunner.harvest.redrive_total",
		metric.WithDescription("Count of dead-lettered completion events replayed by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create redrive_total counter: %w", err))
	}
}
