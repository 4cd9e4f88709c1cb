package pubsubx

import (
	"context"
	"net/http"
	"sync"

	"github.com/samber/lo"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/errorx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/pubsubx/messagex"
	"github.com/clinia/emulator-console/tracex"
)

// Coordinator drives user-initiated writes against the emulator and applies
// their local effect on the store once the emulator acknowledged them.
// It never retries and never cancels a mutation once Pending.
type Coordinator struct {
	l       *logrusx.Logger
	client  ResourceClient
	store   *Store
	metrics *Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	obsMu     sync.Mutex
	observers map[uint64]func(*Mutation)
	nextObsID uint64
}

func NewCoordinator(l *logrusx.Logger, client ResourceClient, store *Store, metrics *Metrics) *Coordinator {
	return &Coordinator{
		l:         l,
		client:    client,
		store:     store,
		metrics:   metrics,
		observers: make(map[uint64]func(*Mutation)),
	}
}

// NewDelete prepares the deletion of a topic given its short or full name.
// On success the topic is removed from the store, provided the store still
// targets cfg.
// A full name must be a topic of cfg's project, so that the entry removed
// locally is the one deleted remotely.
func (c *Coordinator) NewDelete(cfg *emulatorx.ConnectionConfig, name string) *Mutation {
	cfg = cfg.Clone()
	target := name
	var scopeErr error
	if cfg != nil {
		if full, err := messagex.ScopedTopicName(cfg.ProjectID, name); err != nil {
			scopeErr = err
		} else {
			target = full
		}
	}

	return newMutation(MutationKindDelete, target, func(ctx context.Context) error {
		if cfg == nil {
			return NewConfigUnsetFailure(OperationDeleteTopic)
		}
		if scopeErr != nil {
			return scopeErr
		}

		status, err := c.client.DeleteTopic(ctx, cfg, target)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return NewRemoteRejection(OperationDeleteTopic, status, nil)
		}

		c.store.removeByNameFor(cfg, target)
		return nil
	})
}

// NewPublish prepares the publication of payload to topic. The store is left untouched.
func (c *Coordinator) NewPublish(cfg *emulatorx.ConnectionConfig, topic, payload string) *Mutation {
	cfg = cfg.Clone()
	req := NewPublishRequest(topic, payload)

	return newMutation(MutationKindPublish, req.TopicShortName, func(ctx context.Context) error {
		if cfg == nil {
			return NewConfigUnsetFailure(OperationPublish)
		}
		if _, err := messagex.ScopedTopicName(cfg.ProjectID, topic); err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}

		status, err := c.client.PublishMessage(ctx, cfg, req)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return NewRemoteRejection(OperationPublish, status, nil)
		}
		return nil
	})
}

// NewCreate prepares the creation of a topic. The store is never extended
// locally: on success a refresh is issued and its own outcome is only logged.
func (c *Coordinator) NewCreate(cfg *emulatorx.ConnectionConfig, topic string) *Mutation {
	cfg = cfg.Clone()
	short := messagex.ShortName(topic)

	return newMutation(MutationKindCreate, short, func(ctx context.Context) error {
		if cfg == nil {
			return NewConfigUnsetFailure(OperationCreateTopic)
		}
		if _, err := messagex.ScopedTopicName(cfg.ProjectID, topic); err != nil {
			return err
		}

		status, err := c.client.CreateTopic(ctx, cfg, short)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return NewRemoteRejection(OperationCreateTopic, status, nil)
		}

		if _, err := c.store.Refresh(ctx, cfg); err != nil {
			c.l.WithError(err).Warnf("topic %s was created but the topic list could not be refreshed", short)
		}
		return nil
	})
}

// Delete runs a deletion to completion.
func (c *Coordinator) Delete(ctx context.Context, cfg *emulatorx.ConnectionConfig, name string) *Mutation {
	return c.Run(ctx, c.NewDelete(cfg, name))
}

// Publish runs a publication to completion.
func (c *Coordinator) Publish(ctx context.Context, cfg *emulatorx.ConnectionConfig, topic, payload string) *Mutation {
	return c.Run(ctx, c.NewPublish(cfg, topic, payload))
}

// Create runs a topic creation to completion.
func (c *Coordinator) Create(ctx context.Context, cfg *emulatorx.ConnectionConfig, topic string) *Mutation {
	return c.Run(ctx, c.NewCreate(cfg, topic))
}

// Run drives m to a terminal state. A mutation that already left Idle is returned as is.
func (c *Coordinator) Run(ctx context.Context, m *Mutation) *Mutation {
	if !m.start() {
		return m
	}

	l := c.l.WithFields(map[string]interface{}{
		"mutation_id":   m.ID,
		"mutation_kind": m.Kind.String(),
		"target":        m.Target,
	})
	l.Debugf("mutation pending")
	c.emit(m)

	state := m.finish(m.exec(ctx))
	c.metrics.observeMutation(m.Kind, state)
	l = l.WithField("duration_ms", m.Duration().Milliseconds())
	if state == MutationFailed {
		l.WithError(m.Err()).Warnf("mutation failed")
	} else {
		l.Infof("mutation applied")
	}
	c.emit(m)

	return m
}

// Go drives m in the background and returns it right away. Once the
// coordinator is closed, m fails immediately without reaching the emulator.
func (c *Coordinator) Go(ctx context.Context, m *Mutation) *Mutation {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.reject(m)
		return m
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.Run(ctx, m)
	}()
	return m
}

// Wait blocks until every mutation started with Go is terminal.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close refuses new background mutations and waits for the running ones.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) reject(m *Mutation) {
	if !m.start() {
		return
	}
	state := m.finish(errorx.FailedPreconditionErrorf("%s %s was requested after the console closed", m.Kind, m.Target))
	c.metrics.observeMutation(m.Kind, state)
	c.l.WithField("mutation_id", m.ID).Warnf("mutation rejected, the coordinator is closed")
	c.emit(m)
}

// Observe registers fn to be called on every mutation state change.
func (c *Coordinator) Observe(fn func(*Mutation)) (unsubscribe func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn

	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Coordinator) emit(m *Mutation) {
	c.obsMu.Lock()
	observers := lo.Values(c.observers)
	c.obsMu.Unlock()

	for _, fn := range observers {
		func() {
			defer tracex.RecoverWithStackTracef(c.l, "panic while notifying mutation %s", m.ID)
			fn(m)
		}()
	}
}
