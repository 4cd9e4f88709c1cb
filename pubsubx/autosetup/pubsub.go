package autosetup

import (
	"github.com/clinia/emulator-console/errorx"
	"github.com/clinia/emulator-console/httpx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/pubsubx"
	inmemorypubsub "github.com/clinia/emulator-console/pubsubx/inmemory"
	restpubsub "github.com/clinia/emulator-console/pubsubx/rest"
)

// New returns the ResourceClient selected by c.Provider.
func New(l *logrusx.Logger, c *pubsubx.Config, opts ...pubsubx.PubSubOption) (pubsubx.ResourceClient, error) {
	switch c.Provider {
	case pubsubx.ProviderRest, "":
		timeout := c.Providers.Rest.Timeout
		if timeout <= 0 {
			timeout = pubsubx.DefaultRestTimeout
		}
		httpOpts := []httpx.Option{httpx.WithTimeout(timeout)}
		if c.Providers.Rest.SkipTLSVerification {
			httpOpts = append(httpOpts, httpx.WithSkipTLSVerification())
		}
		l.Infof("REST pubsub client configured! Talking to the emulator with a %s timeout", timeout)
		return restpubsub.NewClient(l, httpx.NewClientWithOptions(httpOpts...), opts...), nil

	case pubsubx.ProviderInMemory:
		ps, err := inmemorypubsub.SetupInMemoryPubSub(l, c)
		if err != nil {
			return nil, err
		}
		l.Infof("InMemory pubsub configured! Topics live in this process only")
		return ps, nil

	default:
		return nil, errorx.InvalidArgumentErrorf("unknown pubsub provider %q, expected one of [%s %s]", c.Provider, pubsubx.ProviderRest, pubsubx.ProviderInMemory)
	}
}
