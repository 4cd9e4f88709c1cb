// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package logrusx

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type (
	options struct {
		level         *logrus.Level
		format        string
		out           io.Writer
		hooks         []logrus.Hook
		leakSensitive bool
		redactionText string
	}
	Option func(*options)
)

// ForceLevel overrides the level which would otherwise come from the configuration.
func ForceLevel(level logrus.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// ForceFormat sets the output format, either "json" or "text".
func ForceFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

func WithOutput(out io.Writer) Option {
	return func(o *options) {
		o.out = out
	}
}

func WithHook(hook logrus.Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hook)
	}
}

func LeakSensitive() Option {
	return func(o *options) {
		o.leakSensitive = true
	}
}

func RedactionText(text string) Option {
	return func(o *options) {
		o.redactionText = text
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		redactionText: `Value is sensitive and has been redacted. To see the value set config key "log.leak_sensitive_values = true" or environment variable "LOG_LEAK_SENSITIVE_VALUES=true".`,
	}
	for _, f := range opts {
		f(o)
	}
	return o
}

func newLogger(o *options) *logrus.Logger {
	l := logrus.New()

	if o.level != nil {
		l.Level = *o.level
	} else if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		l.Level = lvl
	} else {
		l.Level = logrus.InfoLevel
	}

	if o.format == "json" {
		l.Formatter = &logrus.JSONFormatter{}
	} else {
		l.Formatter = &logrus.TextFormatter{
			DisableQuote:     true,
			DisableTimestamp: false,
			FullTimestamp:    true,
		}
	}

	if o.out != nil {
		l.Out = o.out
	}

	for _, hook := range o.hooks {
		l.AddHook(hook)
	}

	l.ReportCaller = l.Level == logrus.TraceLevel
	return l
}

// New creates a new logger with all the important fields set.
func New(name string, version string, opts ...Option) *Logger {
	o := newOptions(opts)
	return &Logger{
		opts:          opts,
		name:          name,
		version:       version,
		leakSensitive: o.leakSensitive || os.Getenv("LOG_LEAK_SENSITIVE_VALUES") == "true",
		redactionText: o.redactionText,
		Entry: newLogger(o).WithFields(logrus.Fields{
			"audience": "application", "service_name": name, "service_version": version,
		}),
	}
}

