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
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/cardinalhq/gamerunner/internal/helpers"
)

// setupTelemetry installs the default slog logger and, when OTLP export is
// enabled through the environment, the OpenTelemetry SDK with runtime and
// host metrics. Logs go to stderr; stdout carries command output.
//
// The returned context is cancelled on SIGINT or SIGTERM. The returned
// function flushes telemetry and must be called before exit.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	instanceID := uuid.NewString()

	doneCtx, doneCancel := handleSignals(context.Background())

	f := func() error {
		doneCancel()
		return nil
	}

	var opts *slog.HandlerOptions
	if helpers.EnvEnabled("DEBUG", false) || helpers.EnvEnabled("GAMERUNNER_DEBUG", false) {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && helpers.EnvEnabled("ENABLE_OTLP_TELEMETRY", false) {
		slog.SetDefault(slog.New(slogmulti.Fanout(
			slog.NewTextHandler(os.Stderr, opts),
			otelslog.NewHandler(servicename),
		)).With(
			slog.String("service", servicename),
			slog.String("instanceID", instanceID),
		))
		slog.Info("OpenTelemetry exporting enabled")

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return nil, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			slog.Warn("failed to start runtime metrics", "error", err.Error())
		}

		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", "error", err.Error())
		}

		f = func() error {
			defer doneCancel()
			slog.Debug("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)).With(
			slog.String("service", servicename),
			slog.String("instanceID", instanceID),
		))
	}

	return doneCtx, f, nil
}

// withTelemetry runs fn with telemetry configured, then flushes it.
func withTelemetry(servicename string, fn func(ctx context.Context) error) error {
	ctx, shutdown, err := setupTelemetry(servicename)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
