// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/clinia/emulator-console/errorx"
	"github.com/clinia/emulator-console/logrusx"
)

type (
	Tracer struct {
		provider   trace.TracerProvider
		propagator propagation.TextMapPropagator
		shutdown   func(ctx context.Context) error
	}

	options struct {
		out io.Writer
	}
	Option func(*options)
)

// WithWriter sets where the stdout provider writes its spans. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// New creates the tracer described by c. An empty provider yields a no-op tracer.
func New(l *logrusx.Logger, c *TracerConfig, opts ...Option) (*Tracer, error) {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	t := &Tracer{}
	if err := t.setup(l, c, o); err != nil {
		return nil, err
	}
	return t, nil
}

// NewNoop creates a tracer which records nothing.
func NewNoop() *Tracer {
	return &Tracer{
		provider:   noop.NewTracerProvider(),
		propagator: propagation.NewCompositeTextMapPropagator(),
		shutdown:   func(context.Context) error { return nil },
	}
}

// setup constructs the tracer based on the given configuration.
func (t *Tracer) setup(l *logrusx.Logger, c *TracerConfig, o *options) error {
	prop, err := newPropagator(c.Propagators)
	if err != nil {
		return err
	}

	switch c.Provider {
	case ProviderOTLP:
		tp, err := newOTLPProvider(c)
		if err != nil {
			return err
		}
		t.provider, t.shutdown = tp, tp.Shutdown
		l.Infof("OTLP tracer configured! Sending spans to %s over %s", c.Providers.OTLP.ServerURL, c.Providers.OTLP.Protocol)
	case ProviderStdout:
		tp, err := newStdoutProvider(c, o.out)
		if err != nil {
			return err
		}
		t.provider, t.shutdown = tp, tp.Shutdown
		l.Infof("Stdout tracer configured! Writing spans out")
	case "":
		l.Debugf("No tracer configured - skipping tracing setup")
		*t = *NewNoop()
		return nil
	default:
		return errorx.InvalidArgumentErrorf("unknown tracing provider %q, expected one of [%s %s]", c.Provider, ProviderStdout, ProviderOTLP)
	}

	t.propagator = prop
	return nil
}

// IsLoaded returns true if the tracer has been loaded.
func (t *Tracer) IsLoaded() bool {
	return t != nil && t.provider != nil
}

// Provider returns the underlying OpenTelemetry tracer provider.
func (t *Tracer) Provider() trace.TracerProvider {
	return t.provider
}

// Tracer returns a named tracer of the provider.
func (t *Tracer) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

// TextMapPropagator returns the underlying OpenTelemetry textMapPropagator.
func (t *Tracer) TextMapPropagator() propagation.TextMapPropagator {
	return t.propagator
}

// Shutdown flushes the pending spans and releases the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
