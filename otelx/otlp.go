// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

func newOTLPProvider(c *TracerConfig) (*sdktrace.TracerProvider, error) {
	exp, err := getExporter(c)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(newResource(c)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(
			c.Providers.OTLP.Sampling.SamplingRatio,
		))),
	), nil
}

func newResource(c *TracerConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(c.ServiceName),
	)
}

func getExporter(c *TracerConfig) (*otlptrace.Exporter, error) {
	ctx := context.Background()

	switch c.Providers.OTLP.Protocol {
	case ProtocolHTTP, "":
		clientOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(c.Providers.OTLP.ServerURL),
		}
		if c.Providers.OTLP.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}

		exp, err := otlptrace.New(ctx, otlptracehttp.NewClient(clientOpts...))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create the OTLP HTTP exporter")
		}
		return exp, nil

	case ProtocolGRPC:
		creds := credentials.NewTLS(nil)
		if c.Providers.OTLP.Insecure {
			creds = insecure.NewCredentials()
		}
		conn, err := grpc.NewClient(c.Providers.OTLP.ServerURL, grpc.WithTransportCredentials(creds))
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to the OTLP gRPC endpoint")
		}

		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create the OTLP gRPC exporter")
		}
		return exp, nil

	default:
		return nil, errors.Errorf("unknown OTLP protocol: %s", c.Providers.OTLP.Protocol)
	}
}
