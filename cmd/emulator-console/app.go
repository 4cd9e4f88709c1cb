package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/clinia/emulator-console/configx"
	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/errorx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/otelx"
	"github.com/clinia/emulator-console/pubsubx"
	"github.com/clinia/emulator-console/pubsubx/autosetup"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	opts   *options
	stdin  io.Reader
	stderr io.Writer
	out    *printer

	l          *logrusx.Logger
	config     *configx.Provider
	registry   *emulatorx.Registry
	gatherer   prometheus.Gatherer
	tracer     *otelx.Tracer
	controller *pubsubx.Controller
}

func newApp(ctx context.Context, o *options, flags *pflag.FlagSet, stdin io.Reader, stderr io.Writer, out *printer) (*app, error) {
	a := &app{opts: o, stdin: stdin, stderr: stderr, out: out}

	base, forced := o.configValues(flags)
	p, err := configx.New(ctx, configx.ConsoleSchema,
		configx.WithLogger(bootstrapLogger(stderr)),
		configx.WithConfigFiles(o.configFiles...),
		configx.WithBaseValues(base),
		configx.WithValues(forced),
		configx.WithImmutables(configx.KeyPubSubProvider),
		configx.WithStandardValidationReporter(stderr),
		configx.AttachWatcher(a.onConfigChange),
	)
	if err != nil {
		return nil, err
	}
	a.config = p
	a.l = newLogger(p, stderr)

	reg := prometheus.NewRegistry()
	a.gatherer = reg
	metrics := pubsubx.NewMetrics(reg)

	// Spans go to stderr so they never mix with the command output.
	a.tracer, err = otelx.New(a.l, p.Tracing(), otelx.WithWriter(stderr))
	if err != nil {
		return nil, err
	}

	client, err := autosetup.New(a.l, p.PubSub(),
		pubsubx.WithMetrics(metrics),
		pubsubx.WithTracerProvider(a.tracer.Provider()),
		pubsubx.WithPropagator(a.tracer.TextMapPropagator()),
	)
	if err != nil {
		return nil, err
	}

	a.registry = emulatorx.NewRegistry(p.Emulators()...)
	if o.wait > 0 && p.PubSub().Provider != pubsubx.ProviderInMemory {
		if cfg := a.registry.ByType(emulatorx.TypePubSub); cfg != nil {
			if err := waitForEmulator(ctx, a.l, cfg, o.wait); err != nil {
				return nil, err
			}
		}
	}

	a.controller = pubsubx.NewController(a.l, a.registry, client, metrics)
	a.controller.Start(ctx)
	return a, nil
}

// onConfigChange pushes the emulators of a reloaded config file to the registry.
func (a *app) onConfigChange(e configx.ChangeEvent, err error) {
	configx.LoggerWatcher(a.l)(e, err)
	if err != nil {
		return
	}
	a.registry.Set(a.config.Emulators())
}

func (a *app) close() {
	_ = a.controller.Close()
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.l.WithError(err).Warnf("unable to flush the spans")
		}
	}
}

func (a *app) execute(ctx context.Context, cmd command) error {
	// Every command starts from the first listing of the emulator.
	a.controller.Wait()

	switch cmd.name {
	case "topics":
		return a.topics(ctx)
	case "subscriptions":
		subscriptions, err := a.controller.TopicSubscriptions(ctx, cmd.args[0])
		if err != nil {
			return err
		}
		return a.out.Subscriptions(cmd.args[0], subscriptions)
	case "create":
		return a.mutate(ctx, a.controller.RequestCreate(cmd.args[0]))
	case "delete":
		return a.mutate(ctx, a.controller.RequestDelete(cmd.args[0]))
	case "publish":
		payload, err := a.payload(cmd.args[1])
		if err != nil {
			return err
		}
		return a.mutate(ctx, a.controller.RequestPublish(cmd.args[0], payload))
	case "watch":
		return a.watch(ctx)
	default:
		return errors.Errorf("unknown command %q", cmd.name)
	}
}

func (a *app) topics(ctx context.Context) error {
	snapshot := a.controller.CurrentSnapshot()
	if snapshot.IsUnset() {
		return pubsubx.NewConfigUnsetFailure(pubsubx.OperationListTopics)
	}
	if !snapshot.Loaded {
		// The first refresh failed and was only logged; this one reports why.
		if _, err := a.controller.Refresh(ctx); err != nil {
			return err
		}
		snapshot = a.controller.CurrentSnapshot()
	}
	return a.out.Snapshot(snapshot)
}

func (a *app) mutate(ctx context.Context, m *pubsubx.Mutation) error {
	if _, err := m.Wait(ctx); err != nil {
		return err
	}
	if err := a.out.Mutation(m); err != nil {
		return err
	}
	return outcomeError(m)
}

func (a *app) payload(arg string) (string, error) {
	limit := a.config.MaxPayloadSize()
	payload := []byte(arg)
	if arg == "-" {
		var err error
		payload, err = io.ReadAll(io.LimitReader(a.stdin, int64(limit)+1))
		if err != nil {
			return "", errors.Wrap(err, "unable to read the payload from stdin")
		}
	}

	if size := bytesize.New(float64(len(payload))); size > limit {
		return "", errorx.InvalidArgumentErrorf("the payload exceeds the %s limit", limit)
	}
	return string(payload), nil
}

func (a *app) watch(ctx context.Context) error {
	unsubscribe := a.controller.Subscribe(func(s pubsubx.Snapshot) {
		if err := a.out.Snapshot(s); err != nil {
			a.l.WithError(err).Errorf("unable to print the topics")
		}
	})
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.config.Watch(gctx)
	})

	if a.opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              a.opts.metricsAddr,
			Handler:           newMetricsHandler(a.l, a.gatherer),
			ReadHeaderTimeout: shutdownTimeout,
		}
		g.Go(func() error {
			a.l.Infof("serving metrics on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "unable to serve metrics on %s", srv.Addr)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}
