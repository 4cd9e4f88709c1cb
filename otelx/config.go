// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package otelx

import (
	"bytes"
	_ "embed"
	"io"
)

const (
	ProviderStdout = "stdout"
	ProviderOTLP   = "otel"

	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"

	PropagatorTraceContext = "tracecontext"
	PropagatorBaggage      = "baggage"
	PropagatorB3           = "b3"
	PropagatorJaeger       = "jaeger"
)

type OTLPConfig struct {
	Protocol  string       `json:"protocol"`
	ServerURL string       `json:"server_url"`
	Insecure  bool         `json:"insecure"`
	Sampling  OTLPSampling `json:"sampling"`
}

type OTLPSampling struct {
	SamplingRatio float64 `json:"sampling_ratio"`
}

type StdoutConfig struct {
	Pretty bool `json:"pretty"`
}

type TracerProvidersConfig struct {
	OTLP   OTLPConfig   `json:"otlp"`
	Stdout StdoutConfig `json:"stdout"`
}

type TracerConfig struct {
	ServiceName string                `json:"service_name"`
	Provider    string                `json:"provider"`
	Providers   TracerProvidersConfig `json:"providers"`
	Propagators []string              `json:"propagators"`
}

//go:embed config.schema.json
var ConfigSchema string

const ConfigSchemaID = "clinia://tracing-config"

// AddConfigSchema adds the tracing schema to the compiler.
// The interface is specified instead of `jsonschema.Compiler` to allow the use of any jsonschema library fork or version.
func AddConfigSchema(c interface {
	AddResource(url string, r io.Reader) error
}) error {
	return c.AddResource(ConfigSchemaID, bytes.NewBufferString(ConfigSchema))
}
