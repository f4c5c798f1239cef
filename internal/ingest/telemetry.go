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

package ingest

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	filesProcessed metric.Int64Counter
	rowsObserved   metric.Int64Counter
	fileDuration   metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/gamerunner/internal/ingest")

	var err error
	filesProcessed, err = meter.Int64Counter(
		"gamerunner.ingest.files",
		metric.WithDescription("Number of game files processed, by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ingest.files counter: %w", err))
	}

	rowsObserved, err = meter.Int64Counter(
		"gamerunner.ingest.rows",
		metric.WithDescription("Number of game rows added to the run statistics"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ingest.rows counter: %w", err))
	}

	fileDuration, err = meter.Float64Histogram(
		"gamerunner.ingest.file.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time to fetch and parse one game file"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ingest.file.duration histogram: %w", err))
	}
}
