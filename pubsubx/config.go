package pubsubx

import (
	"bytes"
	_ "embed"
	"io"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	ProviderRest     = "rest"
	ProviderInMemory = "inmemory"

	DefaultRestTimeout = 10 * time.Second
)

type Config struct {
	Provider  string          `json:"provider"`
	Providers ProvidersConfig `json:"providers"`
}

type ProvidersConfig struct {
	InMemory InMemoryConfig `json:"inmemory"`
	Rest     RestConfig     `json:"rest"`
}

type InMemoryConfig struct {
	// Topics seeds the in-memory emulator, keyed by project id, with short topic names.
	Topics map[string][]string `json:"topics"`
}

type RestConfig struct {
	Timeout             time.Duration `json:"timeout"`
	SkipTLSVerification bool          `json:"skip_tls_verification"`
}

type PubSubOptions struct {
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
	Metrics        *Metrics
}

type PubSubOption func(*PubSubOptions)

// WithTracerProvider specifies a tracer provider to use for creating a tracer.
// If none is specified, no tracer is configured
func WithTracerProvider(provider trace.TracerProvider) PubSubOption {
	return func(opts *PubSubOptions) {
		if provider != nil {
			opts.TracerProvider = provider
		}
	}
}

// WithPropagator sets how the trace context is carried on outgoing requests.
func WithPropagator(p propagation.TextMapPropagator) PubSubOption {
	return func(opts *PubSubOptions) {
		if p != nil {
			opts.Propagator = p
		}
	}
}

func WithMetrics(m *Metrics) PubSubOption {
	return func(opts *PubSubOptions) {
		opts.Metrics = m
	}
}

func NewPubSubOptions(opts ...PubSubOption) *PubSubOptions {
	o := &PubSubOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

//go:embed config.schema.json
var ConfigSchema string

const ConfigSchemaID = "clinia://pubsub-config"

// AddConfigSchema adds the pubsub schema to the compiler.
// The interface is specified instead of `jsonschema.Compiler` to allow the use of any jsonschema library fork or version.
func AddConfigSchema(c interface {
	AddResource(url string, r io.Reader) error
},
) error {
	return c.AddResource(ConfigSchemaID, bytes.NewBufferString(ConfigSchema))
}
