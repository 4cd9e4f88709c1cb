package tracex

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinia/emulator-console/logrusx"
)

const ComponentNameSeparator = "."

func ComponentName(packageName, structName string) string {
	return packageName + ComponentNameSeparator + structName
}

/*
Instrument starts a span named after the component and returns a logger bound
to the span context. `End` must be called once the work is done.

	const myComponentName = "xpackage.xStruct"

	func (xs *xStruct) process(ctx context.Context) (err error) {
		ctx, span, l := tracex.Instrument(ctx, xs.l, xs.tracer, myComponentName, "process")
		defer func() { tracex.End(span, err) }()
	}
*/
func Instrument(ctx context.Context, l *logrusx.Logger, t trace.Tracer, componentName string, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span, *logrusx.Logger) {
	fullComponentName := ComponentName(componentName, name)
	ctx, span := t.Start(ctx, fullComponentName, opts...)
	return ctx, span, l.WithContext(ctx).WithField("component", fullComponentName)
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
