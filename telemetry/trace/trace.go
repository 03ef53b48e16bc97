//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package trace exposes the tracer used for graph steps and turns.
package trace

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	itelemetry "trpc.group/trpc-go/trpc-consult-go/internal/telemetry"
)

// Tracer is the global tracer. It is a noop tracer until Start is called.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer("")

// Option configures Start.
type Option func(*options)

type options struct {
	endpoint         string
	endpointURL      string
	protocol         string
	headers          map[string]string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
}

// WithEndpoint sets the collector address (host:port).
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithEndpointURL sets a full collector URL, for HTTP collectors behind a path.
func WithEndpointURL(endpointURL string) Option {
	return func(o *options) { o.endpointURL = endpointURL }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithHeaders sets headers sent with every export.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}

// WithServiceName overrides the reported service name.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// Start installs an OTLP tracer provider and replaces Tracer. The returned
// function flushes and shuts the provider down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = tracesEndpoint(o.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(o.serviceNamespace),
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(o.serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch o.protocol {
	case itelemetry.ProtocolHTTP:
		exporter, err = newHTTPExporter(ctx, o)
	default:
		exporter, err = newGRPCExporter(ctx, o)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = provider.Tracer(itelemetry.InstrumentName)

	return func() error {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("failed to shutdown TracerProvider: %w", err)
		}
		return nil
	}, nil
}

func tracesEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if protocol == itelemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

// parseEndpointURL splits a collector URL into host:port and path.
func parseEndpointURL(endpointURL string) (endpoint, urlPath string, err error) {
	raw := endpointURL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse URL %q: %w", endpointURL, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("no host found in URL %q", endpointURL)
	}
	urlPath = u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return u.Host, urlPath, nil
}

func newGRPCExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	conn, err := itelemetry.NewGRPCConn(o.endpoint)
	if err != nil {
		return nil, err
	}
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithGRPCConn(conn),
		otlptracegrpc.WithHeaders(o.headers),
	)
}

func newHTTPExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	httpOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(o.endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithHeaders(o.headers),
	}
	if o.endpointURL != "" {
		endpoint, urlPath, err := parseEndpointURL(o.endpointURL)
		if err != nil {
			return nil, err
		}
		httpOpts = append(httpOpts,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithURLPath(urlPath),
		)
	}
	return otlptracehttp.New(ctx, httpOpts...)
}
