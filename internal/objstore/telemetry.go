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

package objstore

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("github.com/cardinalhq/gamerunner/internal/objstore")

	downloadErrors  metric.Int64Counter
	downloadCount   metric.Int64Counter
	downloadBytes   metric.Int64Counter
	downloadRetries metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/gamerunner/internal/objstore")

	var err error
	downloadErrors, err = meter.Int64Counter(
		"gamerunner.download.errors",
		metric.WithDescription("Number of failed object downloads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.errors counter: %w", err))
	}

	downloadCount, err = meter.Int64Counter(
		"gamerunner.download.count",
		metric.WithDescription("Number of completed object downloads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.count counter: %w", err))
	}

	downloadBytes, err = meter.Int64Counter(
		"gamerunner.download.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes written to scratch files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.bytes counter: %w", err))
	}

	downloadRetries, err = meter.Int64Counter(
		"gamerunner.download.retries",
		metric.WithDescription("Number of download attempts retried after a transport error"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.retries counter: %w", err))
	}
}
