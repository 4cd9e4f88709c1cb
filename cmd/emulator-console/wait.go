package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/retryx"
)

const (
	waitDialTimeout = time.Second
	waitMaxAttempts = 1000
)

// waitForEmulator blocks until the emulator accepts TCP connections, or
// until timeout elapses.
func waitForEmulator(ctx context.Context, l *logrusx.Logger, cfg *emulatorx.ConnectionConfig, timeout time.Duration) error {
	dialer := &net.Dialer{Timeout: waitDialTimeout}
	err := retryx.ExponentialRetry(
		func() error {
			conn, err := dialer.DialContext(ctx, "tcp", cfg.Address())
			if err != nil {
				if ctx.Err() != nil {
					return retryx.Permanent(err)
				}
				return err
			}
			return conn.Close()
		},
		retryx.WithContext(ctx),
		retryx.WithRetryCount(waitMaxAttempts),
		retryx.WithInterval(100*time.Millisecond),
		retryx.WithMaxInterval(time.Second),
		retryx.WithMaxElapsedTime(timeout),
		retryx.WithNotify(func(err error, next time.Duration) {
			l.WithError(err).Debugf("pubsub emulator %s is not reachable yet, retrying in %s", cfg, next)
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "pubsub emulator %s did not come up within %s", cfg, timeout)
	}

	l.Debugf("pubsub emulator %s is reachable", cfg)
	return nil
}

func newMetricsHandler(l *logrusx.Logger, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(mux, w, r)
		l.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      m.Code,
			"duration_ms": m.Duration.Milliseconds(),
			"written":     m.Written,
		}).Debugf("served %s %s", r.Method, r.URL.Path)
	})
}
