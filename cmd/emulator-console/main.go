package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/clinia/emulator-console/configx"
	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/httpx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/otelx"
	"github.com/clinia/emulator-console/pubsubx"
)

const (
	name = "emulator-console"

	defaultHost = "localhost"
	defaultPort = 8085

	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var version = "dev"

const usage = `Usage: emulator-console [flags] <command> [args]

Commands:
  topics                      list the topics of the pubsub emulator
  subscriptions <topic>       list the subscriptions attached to a topic
  create <topic>              create a topic
  delete <topic>              delete a topic, by short or full name
  publish <topic> <payload>   publish a message, "-" reads the payload from stdin
  watch                       print the topics on every change until interrupted

Flags:
`

type options struct {
	configFiles []string
	host        string
	port        int
	project     string
	tls         bool
	provider    string
	logLevel    string
	logFormat   string
	timeout     time.Duration
	wait        time.Duration
	output      string
	trace       bool
	metricsAddr string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func newFlagSet(o *options, stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SortFlags = false

	flags.StringSliceVarP(&o.configFiles, "config", "c", nil, "config files to load, later files take precedence")
	flags.StringVar(&o.host, "host", defaultHost, "host of the pubsub emulator")
	flags.IntVar(&o.port, "port", defaultPort, "port of the pubsub emulator")
	flags.StringVar(&o.project, "project", "", "project of the pubsub emulator")
	flags.BoolVar(&o.tls, "tls", false, "reach the pubsub emulator over https")
	flags.StringVar(&o.provider, "provider", "", "pubsub client, rest or inmemory")
	flags.StringVar(&o.logLevel, "log-level", "", "log level, overrides log.level")
	flags.StringVar(&o.logFormat, "log-format", "", "log format, text or json")
	flags.DurationVar(&o.timeout, "timeout", 0, "timeout of a single request to the emulator")
	flags.DurationVar(&o.wait, "wait", 0, "wait up to this long for the emulator to accept connections")
	flags.StringVarP(&o.output, "output", "o", outputText, "output format, text, json or yaml")
	flags.BoolVar(&o.trace, "trace", false, "print the spans of every request to stderr, overrides tracing.provider")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while watching")

	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	return flags
}

// configValues turns the flags set on the command line into forced config
// values. Flags left to their default never override a config file.
func (o *options) configValues(flags *pflag.FlagSet) (base, forced map[string]interface{}) {
	base = map[string]interface{}{}
	forced = map[string]interface{}{}

	pubsub := func(field string) string {
		return configx.EmulatorKey(emulatorx.TypePubSub, field)
	}
	if flags.Changed("host") {
		forced[pubsub("host")] = o.host
	}
	if flags.Changed("port") {
		forced[pubsub("port")] = o.port
	}
	if flags.Changed("project") {
		forced[pubsub("project_id")] = o.project
	}
	if flags.Changed("tls") {
		forced[pubsub("tls")] = o.tls
	}
	if len(forced) > 0 {
		base[pubsub("host")] = defaultHost
		base[pubsub("port")] = defaultPort
	}

	if o.provider != "" {
		forced[configx.KeyPubSubProvider] = o.provider
	}
	if o.logLevel != "" {
		forced[configx.KeyLogLevel] = o.logLevel
	}
	if o.logFormat != "" {
		forced[configx.KeyLogFormat] = o.logFormat
	}
	if o.trace {
		forced[configx.KeyTracingProvider] = otelx.ProviderStdout
	}
	if o.timeout > 0 {
		forced[configx.KeyRestTimeout] = strconv.FormatInt(o.timeout.Milliseconds(), 10) + "ms"
	}
	return base, forced
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o := &options{}
	flags := newFlagSet(o, stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cmd, err := parseCommand(flags.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%s\n\n", err)
		flags.Usage()
		return exitUsage
	}

	out, err := newPrinter(stdout, o.output)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	a, err := newApp(ctx, o, flags, stdin, stderr, out)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", name, err)
		return exitFailure
	}
	defer a.close()

	if err := a.execute(ctx, cmd); err != nil {
		a.l.WithError(err).Debugf("command %s failed", cmd.name)
		fmt.Fprintf(stderr, "%s: %s\n", name, err)
		if h := hint(err); h != "" {
			fmt.Fprintf(stderr, "hint: %s\n", h)
		}
		return exitFailure
	}
	return exitOK
}

func bootstrapLogger(stderr io.Writer) *logrusx.Logger {
	return logrusx.New(name, version, logrusx.WithOutput(stderr))
}

func newLogger(p *configx.Provider, stderr io.Writer) *logrusx.Logger {
	opts := []logrusx.Option{
		logrusx.WithOutput(stderr),
		logrusx.ForceLevel(p.LogLevel()),
		logrusx.ForceFormat(p.LogFormat()),
		logrusx.WithHook(logrusx.NewRequestIdHook(httpx.RequestIDContextKey, "request_id")),
	}
	if p.LeakSensitiveValues() {
		opts = append(opts, logrusx.LeakSensitive())
	}
	return logrusx.New(name, version, opts...)
}

type command struct {
	name string
	args []string
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("missing command")
	}

	cmd := command{name: args[0], args: args[1:]}
	expected := map[string]int{
		"topics":        0,
		"watch":         0,
		"subscriptions": 1,
		"create":        1,
		"delete":        1,
		"publish":       2,
	}
	n, ok := expected[cmd.name]
	if !ok {
		return command{}, errors.Errorf("unknown command %q", cmd.name)
	}
	if len(cmd.args) != n {
		return command{}, errors.Errorf("%s expects %d argument(s), got %q", cmd.name, n, strings.Join(cmd.args, " "))
	}
	return cmd, nil
}

func outcomeError(m *pubsubx.Mutation) error {
	if m.State() == pubsubx.MutationApplied {
		return nil
	}
	if err := m.Err(); err != nil {
		return err
	}
	return errors.Errorf("%s %s ended %s", m.Kind, m.Target, m.State())
}
