package logrusx

import (
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// NewLogFields converts otel attributes to logrus fields, replacing "." in keys with "__".
func NewLogFields(kvs ...attribute.KeyValue) logrus.Fields {
	f := logrus.Fields{}
	for _, kv := range kvs {
		k := strings.ReplaceAll(string(kv.Key), ".", "__")
		f[k] = kv.Value.AsInterface()
	}

	return f
}

// WithAttributes is a shorthand for WithFields(NewLogFields(kvs...)).
func (l *Logger) WithAttributes(kvs ...attribute.KeyValue) *Logger {
	return l.WithFields(NewLogFields(kvs...))
}
