package pubsubx

import (
	"context"
	"sync"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/logrusx"
)

// Controller keeps a Store in sync with the pub/sub emulator selected in a
// registry and exposes the operations a presentation layer needs.
type Controller struct {
	l           *logrusx.Logger
	registry    *emulatorx.Registry
	client      ResourceClient
	store       *Store
	coordinator *Coordinator

	mu          sync.Mutex
	ctx         context.Context
	unsubscribe func()

	// lifecycle orders config transitions against Close.
	lifecycle sync.Mutex
	closed    bool
	refreshes sync.WaitGroup
}

func NewController(l *logrusx.Logger, registry *emulatorx.Registry, client ResourceClient, metrics *Metrics) *Controller {
	store := NewStore(l, client, metrics)
	return &Controller{
		l:           l,
		registry:    registry,
		client:      client,
		store:       store,
		coordinator: NewCoordinator(l, client, store, metrics),
		ctx:         context.Background(),
	}
}

// Start follows the pub/sub emulator of the registry. Every config transition
// resets the store and issues exactly one refresh. ctx is used by every
// request the controller issues on its own.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return
	}
	c.ctx = ctx
	c.mu.Unlock()

	unsubscribe := c.registry.Subscribe(emulatorx.TypePubSub, c.onConfig)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

func (c *Controller) onConfig(cfg *emulatorx.ConnectionConfig) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.closed {
		return
	}

	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			c.l.WithError(err).Warnf("ignoring pubsub emulator %s", cfg)
			cfg = nil
		}
	}

	if !c.store.SetConfig(cfg) || cfg == nil {
		return
	}

	c.l.Infof("pubsub emulator set to %s", cfg)
	c.goRefresh(cfg)
}

// goRefresh must be called with c.lifecycle held.
func (c *Controller) goRefresh(cfg *emulatorx.ConnectionConfig) {
	ctx := c.context()
	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()
		if _, err := c.store.Refresh(ctx, cfg); err != nil {
			c.l.WithError(err).Errorf("could not list the topics of %s", cfg)
		}
	}()
}

func (c *Controller) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *Controller) CurrentSnapshot() Snapshot {
	return c.store.Snapshot()
}

// Subscribe is notified with every new snapshot, starting with the current one.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// Refresh re-fetches the topics of the current emulator.
func (c *Controller) Refresh(ctx context.Context) (bool, error) {
	return c.store.Refresh(ctx, c.store.Config())
}

// RequestDelete starts the deletion of a topic, by short or full name, in the background.
func (c *Controller) RequestDelete(name string) *Mutation {
	return c.coordinator.Go(c.context(), c.coordinator.NewDelete(c.store.Config(), name))
}

// RequestPublish starts the publication of payload to topic in the background.
func (c *Controller) RequestPublish(topic, payload string) *Mutation {
	return c.coordinator.Go(c.context(), c.coordinator.NewPublish(c.store.Config(), topic, payload))
}

// RequestCreate starts the creation of a topic in the background.
func (c *Controller) RequestCreate(topic string) *Mutation {
	return c.coordinator.Go(c.context(), c.coordinator.NewCreate(c.store.Config(), topic))
}

// TopicSubscriptions lists the subscriptions attached to topic on the current emulator.
func (c *Controller) TopicSubscriptions(ctx context.Context, topic string) ([]string, error) {
	cfg := c.store.Config()
	if cfg == nil {
		return nil, NewConfigUnsetFailure(OperationListTopicSubscriptions)
	}
	return c.client.ListTopicSubscriptions(ctx, cfg, topic)
}

// Wait blocks until every refresh and mutation issued so far is done.
func (c *Controller) Wait() {
	c.refreshes.Wait()
	c.coordinator.Wait()
}

// Close stops following the registry, lets in-flight work finish and drops
// the topic collection. Config changes and mutations arriving afterwards are
// ignored and failed respectively.
func (c *Controller) Close() error {
	c.lifecycle.Lock()
	c.closed = true
	c.lifecycle.Unlock()

	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.refreshes.Wait()
	c.coordinator.Close()
	c.store.SetConfig(nil)
	return nil
}
