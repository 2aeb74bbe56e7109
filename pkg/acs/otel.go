/*
Copyright 2025 Intel Corporation

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package acs

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/acs-suite/gompam/pkg/acs"

// OtelRecorder pushes test results as OpenTelemetry metrics. It is an
// Observer of the Runner.
type OtelRecorder struct {
	provider *sdkmetric.MeterProvider
	verdicts metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOtelExporter creates a metric exporter by name: "stdout" writes to w,
// "otlp-http" and "otlp-grpc" push to endpoint.
func NewOtelExporter(ctx context.Context, name, endpoint string, w io.Writer) (sdkmetric.Exporter, error) {
	switch name {
	case "stdout":
		return stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	case "otlp-http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp http exporter: %w", err)
		}
		return exp, nil
	case "otlp-grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp grpc exporter: %w", err)
		}
		return exp, nil
	}
	return nil, fmt.Errorf("unknown otel exporter %q, must be one of stdout, otlp-http, otlp-grpc", name)
}

// NewOtelRecorder creates a recorder that collects into reader.
func NewOtelRecorder(reader sdkmetric.Reader) (*OtelRecorder, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "mpam-acs"))),
	)
	meter := provider.Meter(meterName)

	verdicts, err := meter.Int64Counter("acs.test.verdicts",
		metric.WithDescription("Compliance test verdicts."))
	if err != nil {
		return nil, fmt.Errorf("failed to create verdict counter: %w", err)
	}
	duration, err := meter.Float64Histogram("acs.test.duration",
		metric.WithDescription("Wall clock time of compliance tests."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &OtelRecorder{
		provider: provider,
		verdicts: verdicts,
		duration: duration,
	}, nil
}

// NewPushRecorder creates a recorder exporting periodically, and on
// Shutdown, through exporter.
func NewPushRecorder(exporter sdkmetric.Exporter) (*OtelRecorder, error) {
	return NewOtelRecorder(sdkmetric.NewPeriodicReader(exporter))
}

// Observe implements Observer.
func (o *OtelRecorder) Observe(ctx context.Context, r Result) {
	attrs := metric.WithAttributes(
		attribute.String("test", strconv.FormatUint(uint64(r.Test.Num), 10)),
		attribute.String("module", r.Test.Module),
		attribute.String("state", r.Status.State().String()),
		attribute.Int("subcode", int(r.Status.SubCode())),
	)
	o.verdicts.Add(ctx, 1, attrs)
	o.duration.Record(ctx, r.Duration.Seconds(), metric.WithAttributes(
		attribute.String("test", strconv.FormatUint(uint64(r.Test.Num), 10)),
	))
}

// Shutdown flushes pending metrics and stops the recorder.
func (o *OtelRecorder) Shutdown(ctx context.Context) error {
	return o.provider.Shutdown(ctx)
}
