// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

package logrusx

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinia/emulator-console/errorx"
)

type Logger struct {
	*logrus.Entry
	leakSensitive bool
	redactionText string
	opts          []Option
	name          string
	version       string
}

func (l *Logger) LeakSensitiveData() bool {
	return l.leakSensitive
}

func (l *Logger) WithContext(ctx context.Context) *Logger {
	ll := *l
	ll.Entry = l.Entry.WithContext(ctx)
	return &ll
}

func (l *Logger) Logf(level logrus.Level, format string, args ...interface{}) {
	// Add traces information if available in context
	if l.Context != nil {
		spanCtx := trace.SpanContextFromContext(l.Context)
		if spanCtx.IsValid() {
			if spanCtx.HasTraceID() {
				l = l.WithField("TraceID", spanCtx.TraceID().String())
			}
			if spanCtx.HasSpanID() {
				l = l.WithField("SpanID", spanCtx.SpanID().String())
			}
		}
	}
	if !l.leakSensitive {
		for i, arg := range args {
			switch urlArg := arg.(type) {
			case url.URL:
				urlCopy := url.URL{Scheme: urlArg.Scheme, Host: urlArg.Host, Path: urlArg.Path}
				args[i] = urlCopy
			case *url.URL:
				urlCopy := url.URL{Scheme: urlArg.Scheme, Host: urlArg.Host, Path: urlArg.Path}
				args[i] = &urlCopy
			default:
				continue
			}
		}
	}
	l.Entry.Logf(level, format, args...)
}

func (l *Logger) Tracef(format string, args ...interface{}) {
	l.Logf(logrus.TraceLevel, format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Logf(logrus.DebugLevel, format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Logf(logrus.InfoLevel, format, args...)
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Logf(logrus.WarnLevel, format, args...)
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Logf(logrus.ErrorLevel, format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.Logf(logrus.FatalLevel, format, args...)
	l.Entry.Logger.Exit(1)
}

func (l *Logger) WithFields(f logrus.Fields) *Logger {
	ll := *l
	ll.Entry = l.Entry.WithFields(f)
	return &ll
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	ll := *l
	ll.Entry = l.Entry.WithField(key, value)
	return &ll
}

func (l *Logger) maybeRedact(value interface{}) interface{} {
	if value == nil || fmt.Sprintf("%v", value) == "" {
		return nil
	}
	if !l.leakSensitive {
		return l.redactionText
	}
	return value
}

func (l *Logger) WithSensitiveField(key string, value interface{}) *Logger {
	return l.WithField(key, l.maybeRedact(value))
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	ctx := errorCtx(err)
	if l.Entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		if ce, ok := errorx.IsCliniaError(err); ok && len(ce.StackTrace()) > 0 {
			ctx["stack_trace"] = ce.StackTrace().String()
		}
	}

	return l.WithField("error", ctx)
}

func errorCtx(err error) map[string]interface{} {
	ctx := map[string]interface{}{"message": err.Error()}
	if ce, ok := errorx.IsCliniaError(err); ok {
		ctx["type"] = ce.Type.String()
	}
	return ctx
}
