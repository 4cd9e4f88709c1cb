// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	tracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/clinia/emulator-console/logrusx"
)

func newTestLogger() *logrusx.Logger {
	return logrusx.New("emulator-console", "test", logrusx.WithOutput(io.Discard))
}

func decodeResponseBody(t *testing.T, r *http.Request) []byte {
	var reader io.ReadCloser
	switch r.Header.Get("Content-Encoding") {
	case "gzip":
		var err error
		reader, err = gzip.NewReader(r.Body)
		if err != nil {
			t.Fatal(err)
		}
	case "deflate":
		var err error
		reader, err = zlib.NewReader(r.Body)
		if err != nil {
			t.Fatal(err)
		}

	default:
		reader = r.Body
	}
	respBody, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	return respBody
}

func emitTestSpan(t *testing.T, tr *Tracer) {
	_, span := tr.Tracer("test").Start(context.Background(), "testSpan")
	span.SetAttributes(attribute.Bool("testAttribute", true))
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NoError(t, tr.Shutdown(ctx))
}

func TestHTTPOTLPTracer(t *testing.T) {
	done := make(chan struct{})
	var once sync.Once

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeResponseBody(t, r)

		var res tracepb.ExportTraceServiceRequest
		err := proto.Unmarshal(body, &res)
		require.NoError(t, err, "must be able to unmarshal traces")

		resourceSpans := res.GetResourceSpans()
		spans := resourceSpans[0].GetScopeSpans()[0].GetSpans()
		assert.Equal(t, len(spans), 1)

		assert.NotEmpty(t, spans[0].GetSpanId())
		assert.NotEmpty(t, spans[0].GetTraceId())
		assert.Equal(t, "testSpan", spans[0].GetName())
		assert.Equal(t, "testAttribute", spans[0].Attributes[0].Key)

		once.Do(func() { close(done) })
	}))
	defer ts.Close()

	tsu, err := url.Parse(ts.URL)
	require.NoError(t, err)

	tr, err := New(newTestLogger(), &TracerConfig{
		ServiceName: "emulator-console",
		Provider:    ProviderOTLP,
		Providers: TracerProvidersConfig{
			OTLP: OTLPConfig{
				Protocol:  ProtocolHTTP,
				ServerURL: tsu.Host,
				Insecure:  true,
				Sampling:  OTLPSampling{SamplingRatio: 1},
			},
		},
	})
	require.NoError(t, err)
	emitTestSpan(t, tr)

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatalf("Test server did not receive spans")
	}
}

type TraceServiceServer struct {
	tracepb.UnimplementedTraceServiceServer
	t    *testing.T
	once sync.Once
	done chan struct{}
}

func (s *TraceServiceServer) Export(ctx context.Context, req *tracepb.ExportTraceServiceRequest) (*tracepb.ExportTraceServiceResponse, error) {
	resourceSpans := req.GetResourceSpans()
	spans := resourceSpans[0].GetScopeSpans()[0].GetSpans()
	assert.Equal(s.t, len(spans), 1)

	assert.NotEmpty(s.t, spans[0].GetSpanId())
	assert.NotEmpty(s.t, spans[0].GetTraceId())
	assert.Equal(s.t, "testSpan", spans[0].GetName())
	assert.Equal(s.t, "testAttribute", spans[0].Attributes[0].Key)

	s.once.Do(func() { close(s.done) })

	return &tracepb.ExportTraceServiceResponse{}, nil
}

func TestGRPCOTLPTracer(t *testing.T) {
	grpcServer := grpc.NewServer()
	service := &TraceServiceServer{t: t, done: make(chan struct{})}

	tracepb.RegisterTraceServiceServer(grpcServer, service)
	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	defer grpcServer.Stop()

	tr, err := New(newTestLogger(), &TracerConfig{
		ServiceName: "emulator-console",
		Provider:    ProviderOTLP,
		Providers: TracerProvidersConfig{
			OTLP: OTLPConfig{
				Protocol:  ProtocolGRPC,
				ServerURL: lis.Addr().String(),
				Insecure:  true,
				Sampling:  OTLPSampling{SamplingRatio: 1},
			},
		},
	})
	require.NoError(t, err)
	emitTestSpan(t, tr)

	select {
	case <-service.done:
	case <-time.After(15 * time.Second):
		t.Fatalf("Test server did not receive spans")
	}
}

func TestStdoutTracer(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(newTestLogger(), &TracerConfig{
		ServiceName: "emulator-console",
		Provider:    ProviderStdout,
	}, WithWriter(&buf))
	require.NoError(t, err)
	require.True(t, tr.IsLoaded())

	emitTestSpan(t, tr)

	assert.Contains(t, buf.String(), "testSpan")
	assert.Contains(t, buf.String(), "testAttribute")
}

func TestNew(t *testing.T) {
	t.Run("should fall back to a no-op tracer", func(t *testing.T) {
		tr, err := New(newTestLogger(), &TracerConfig{})
		require.NoError(t, err)

		_, span := tr.Tracer("test").Start(context.Background(), "noop")
		assert.False(t, span.SpanContext().IsValid())
		span.End()
		assert.NoError(t, tr.Shutdown(context.Background()))
	})

	t.Run("should reject unknown providers", func(t *testing.T) {
		_, err := New(newTestLogger(), &TracerConfig{Provider: "jaeger"})
		assert.ErrorContains(t, err, `unknown tracing provider "jaeger"`)
	})

	t.Run("should reject unknown OTLP protocols", func(t *testing.T) {
		_, err := New(newTestLogger(), &TracerConfig{
			Provider:  ProviderOTLP,
			Providers: TracerProvidersConfig{OTLP: OTLPConfig{Protocol: "udp"}},
		})
		assert.ErrorContains(t, err, "unknown OTLP protocol: udp")
	})

	t.Run("should reject unknown propagators", func(t *testing.T) {
		_, err := New(newTestLogger(), &TracerConfig{Provider: ProviderStdout, Propagators: []string{"xray"}})
		assert.ErrorContains(t, err, `unknown propagator "xray"`)
	})
}

func TestPropagators(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	t.Run("should default to trace context", func(t *testing.T) {
		prop, err := newPropagator(nil)
		require.NoError(t, err)

		carrier := propagation.HeaderCarrier(http.Header{})
		prop.Inject(ctx, carrier)
		assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", carrier.Get("traceparent"))
		assert.Empty(t, carrier.Get("x-b3-traceid"))
	})

	t.Run("should compose b3 and jaeger", func(t *testing.T) {
		prop, err := newPropagator([]string{PropagatorB3, PropagatorJaeger})
		require.NoError(t, err)

		carrier := propagation.HeaderCarrier(http.Header{})
		prop.Inject(ctx, carrier)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", carrier.Get("x-b3-traceid"))
		assert.Contains(t, carrier.Get("uber-trace-id"), "4bf92f3577b34da6a3ce929d0e0e4736")
		assert.Empty(t, carrier.Get("traceparent"))

		extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), carrier))
		assert.Equal(t, sc.TraceID(), extracted.TraceID())
	})
}
