// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides tracing setup and run metrics for the analyzer.
//
// # Description
//
// Tracing uses the OpenTelemetry SDK with a stdout or OTLP exporter. Metrics
// use a private Prometheus registry; a batch job has no scrape endpoint, so
// the registry is pushed to a Pushgateway at the end of a run.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/config"
)

// ErrUnknownExporter is returned for an unsupported traces exporter name.
var ErrUnknownExporter = errors.New("unknown traces exporter")

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// TracingOptions tunes InitTracing.
type TracingOptions struct {
	// Version is reported as service.version.
	Version string

	// Writer receives stdout-exporter output. Defaults to os.Stderr so
	// span dumps never mix with command output.
	Writer io.Writer
}

// InitTracing installs a global tracer provider.
//
// # Description
//
// With the "none" exporter nothing is installed and the global no-op
// provider stays in place. "stdout" pretty-prints spans to opts.Writer.
// "otlp" sends spans over gRPC to cfg.OTLPEndpoint without TLS, matching
// a local collector.
//
// # Inputs
//
//   - ctx: Context for exporter setup.
//   - cfg: Telemetry section of the configuration.
//   - opts: Version and writer.
//
// # Outputs
//
//   - ShutdownFunc: Always non-nil. Call it before exit to flush spans.
//   - error: Non-nil if the exporter cannot be created.
func InitTracing(ctx context.Context, cfg config.TelemetryConfig, opts TracingOptions) (ShutdownFunc, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)

	switch cfg.TracesExporter {
	case "", config.ExporterNone:
		return noopShutdown, nil

	case config.ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())

	case config.ExporterOTLP:
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			clientOpts = append(clientOpts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		exporter, err = otlptracegrpc.New(ctx, clientOpts...)

	default:
		return noopShutdown, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TracesExporter)
	}
	if err != nil {
		return noopShutdown, fmt.Errorf("create exporter: %w", err)
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
