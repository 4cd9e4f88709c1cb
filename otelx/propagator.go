package otelx

import (
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel/propagation"

	"github.com/clinia/emulator-console/errorx"
)

// newPropagator composes the named propagators, in order. No name means
// W3C trace context and baggage.
func newPropagator(names []string) (propagation.TextMapPropagator, error) {
	if len(names) == 0 {
		names = []string{PropagatorTraceContext, PropagatorBaggage}
	}

	props := make([]propagation.TextMapPropagator, 0, len(names))
	for _, name := range names {
		switch name {
		case PropagatorTraceContext:
			props = append(props, propagation.TraceContext{})
		case PropagatorBaggage:
			props = append(props, propagation.Baggage{})
		case PropagatorB3:
			props = append(props, b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)))
		case PropagatorJaeger:
			props = append(props, jaeger.Jaeger{})
		default:
			return nil, errorx.InvalidArgumentErrorf("unknown propagator %q", name)
		}
	}
	return propagation.NewCompositeTextMapPropagator(props...), nil
}
