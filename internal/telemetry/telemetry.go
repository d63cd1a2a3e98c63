// Package telemetry configures the OpenTelemetry trace pipeline.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Nexus-Agni/ShadowSpeak"

// Init installs an OTLP/HTTP tracer provider when endpoint is set. With no
// endpoint the global no-op provider stays in place.
func Init(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	target, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracehttp.New(ctx, target.options()...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("tracer provider shutdown", "err", err)
		}
		return nil
	}, nil
}

type exporterTarget struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint accepts either a URL (http://collector:4318/v1/traces) or a
// bare host:port, which is sent to in plain text.
func parseEndpoint(endpoint string) (exporterTarget, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return exporterTarget{host: endpoint, insecure: true}, nil
	}
	if parsed.Host == "" {
		return exporterTarget{}, fmt.Errorf("invalid OTLP endpoint: %s", endpoint)
	}
	t := exporterTarget{host: parsed.Host, insecure: parsed.Scheme == "http"}
	if parsed.Path != "" && parsed.Path != "/" {
		t.path = parsed.Path
	}
	return t, nil
}

func (t exporterTarget) options() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.host)}
	if t.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(t.path))
	}
	if t.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// Tracer returns the application tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
