package configx

import (
	_ "embed"
	"slices"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/otelx"
	"github.com/clinia/emulator-console/pubsubx"
)

const (
	KeyEmulators           = "emulators"
	KeyPubSub              = "pubsub"
	KeyTracing             = "tracing"
	KeyPubSubProvider      = "pubsub.provider"
	KeyTracingProvider     = "tracing.provider"
	KeyRestTimeout         = "pubsub.providers.rest.timeout"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"
	KeyLeakSensitiveValues = "log.leak_sensitive_values"
	KeyMaxPayloadSize      = "publish.max_payload_size"

	DefaultMaxPayloadSize = 10 * bytesize.MB
)

//go:embed config.schema.json
var ConsoleSchema []byte

// EmulatorKey returns the key of a field of the emulator of the given type.
func EmulatorKey(emulatorType, field string) string {
	return joinKey(joinKey(KeyEmulators, emulatorType), field)
}

// Emulators returns the configured emulators, ordered by type.
func (p *Provider) Emulators() []emulatorx.Emulator {
	var raw map[string]emulatorx.Emulator
	if err := p.Unmarshal(KeyEmulators, &raw); err != nil {
		p.logger.WithError(err).Errorf("unable to read the configured emulators")
		return nil
	}

	types := lo.Keys(raw)
	slices.Sort(types)
	return lo.Map(types, func(t string, _ int) emulatorx.Emulator {
		e := raw[t]
		e.Type = t
		return e
	})
}

func (p *Provider) PubSub() *pubsubx.Config {
	c := &pubsubx.Config{}
	if err := p.Unmarshal(KeyPubSub, c); err != nil {
		p.logger.WithError(err).Errorf("unable to read the pubsub configuration")
	}
	return c
}

func (p *Provider) Tracing() *otelx.TracerConfig {
	c := &otelx.TracerConfig{}
	if err := p.Unmarshal(KeyTracing, c); err != nil {
		p.logger.WithError(err).Errorf("unable to read the tracing configuration")
	}
	return c
}

func (p *Provider) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(p.String(KeyLogLevel))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func (p *Provider) LogFormat() string {
	return p.String(KeyLogFormat)
}

func (p *Provider) LeakSensitiveValues() bool {
	return p.Bool(KeyLeakSensitiveValues)
}

func (p *Provider) HTTPTimeout() time.Duration {
	if d := p.Duration(KeyRestTimeout); d > 0 {
		return d
	}
	return pubsubx.DefaultRestTimeout
}

func (p *Provider) MaxPayloadSize() bytesize.ByteSize {
	size, err := bytesize.Parse(p.String(KeyMaxPayloadSize))
	if err != nil || size <= 0 {
		return DefaultMaxPayloadSize
	}
	return size
}
