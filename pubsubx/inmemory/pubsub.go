package inmemorypubsub

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/pubsubx"
	"github.com/clinia/emulator-console/pubsubx/messagex"
)

type (
	// PubSub is an in-process pub/sub emulator, scoped per project id.
	PubSub struct {
		l *logrusx.Logger

		mu       sync.RWMutex
		projects map[string]*memoryProject
		forced   map[string]forcedAnswer
		hooks    []Hook
		calls    map[string]int
	}
	memoryProject struct {
		topics        []messagex.Topic
		subscriptions map[messagex.Topic][]string
		messages      map[messagex.Topic][]*messagex.Message
	}
	forcedAnswer struct {
		status int
		err    error
	}

	// Hook is called before every operation, outside of any lock.
	Hook func(ctx context.Context, op string, cfg *emulatorx.ConnectionConfig)

	Option func(*PubSub)
)

var _ pubsubx.ResourceClient = (*PubSub)(nil)

// WithTopics seeds a project with topics, given by short name.
func WithTopics(projectID string, topics ...string) Option {
	return func(m *PubSub) {
		p := m.project(projectID)
		for _, t := range topics {
			p.addTopic(messagex.Topic(t))
		}
	}
}

// WithSubscription attaches a subscription, given by short name, to a topic.
func WithSubscription(projectID, topic, subscription string) Option {
	return func(m *PubSub) {
		p := m.project(projectID)
		p.addTopic(messagex.Topic(topic))
		p.subscriptions[messagex.Topic(topic)] = append(
			p.subscriptions[messagex.Topic(topic)],
			messagex.SubscriptionName(projectID, subscription),
		)
	}
}

func WithHook(h Hook) Option {
	return func(m *PubSub) {
		m.hooks = append(m.hooks, h)
	}
}

func WithLogger(l *logrusx.Logger) Option {
	return func(m *PubSub) {
		m.l = l
	}
}

func New(opts ...Option) *PubSub {
	m := &PubSub{
		projects: map[string]*memoryProject{},
		forced:   map[string]forcedAnswer{},
		calls:    map[string]int{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.l == nil {
		m.l = logrusx.New("emulator-console", "")
	}
	return m
}

// SetupInMemoryPubSub builds an emulator seeded from the provider config.
func SetupInMemoryPubSub(l *logrusx.Logger, c *pubsubx.Config) (*PubSub, error) {
	opts := []Option{WithLogger(l)}
	for projectID, topics := range c.Providers.InMemory.Topics {
		for _, t := range topics {
			if _, err := messagex.NewTopic(t); err != nil {
				return nil, err
			}
		}
		opts = append(opts, WithTopics(projectID, topics...))
	}
	return New(opts...), nil
}

// ForceStatus makes every following call of op answer with status, without side effect.
func (m *PubSub) ForceStatus(op string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced[op] = forcedAnswer{status: status}
}

// ForceError makes every following call of op fail with err, as a transport failure would.
func (m *PubSub) ForceError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced[op] = forcedAnswer{err: err}
}

func (m *PubSub) ClearForced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = map[string]forcedAnswer{}
}

// Calls returns how many times op was called.
func (m *PubSub) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Published returns a copy of the messages published to a topic.
func (m *PubSub) Published(projectID, topic string) []*messagex.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil
	}
	return lo.Map(p.messages[messagex.TopicFromName(topic)], func(msg *messagex.Message, _ int) *messagex.Message {
		return msg.Copy()
	})
}

// ListTopics implements pubsubx.ResourceClient.
func (m *PubSub) ListTopics(ctx context.Context, cfg *emulatorx.ConnectionConfig) (pubsubx.TopicCollection, error) {
	if cfg == nil {
		return nil, pubsubx.NewConfigUnsetFailure(pubsubx.OperationListTopics)
	}
	m.before(ctx, pubsubx.OperationListTopics, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.forcedLocked(pubsubx.OperationListTopics); ok {
		return nil, f.queryFailure(pubsubx.OperationListTopics)
	}

	p, ok := m.projects[cfg.ProjectID]
	if !ok {
		return pubsubx.TopicCollection{}, nil
	}
	return pubsubx.NewTopicCollection(lo.Map(p.topics, func(t messagex.Topic, _ int) string {
		return t.TopicName(cfg.ProjectID)
	})...), nil
}

// DeleteTopic implements pubsubx.ResourceClient.
func (m *PubSub) DeleteTopic(ctx context.Context, cfg *emulatorx.ConnectionConfig, name string) (int, error) {
	if cfg == nil {
		return 0, pubsubx.NewConfigUnsetFailure(pubsubx.OperationDeleteTopic)
	}
	m.before(ctx, pubsubx.OperationDeleteTopic, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.forcedLocked(pubsubx.OperationDeleteTopic); ok {
		return f.status, f.transportFailure(pubsubx.OperationDeleteTopic)
	}

	topic := messagex.TopicFromName(name)
	p, ok := m.projects[cfg.ProjectID]
	if !ok || !p.removeTopic(topic) {
		return http.StatusNotFound, nil
	}
	m.l.Debugf("deleted topic %s", topic.TopicName(cfg.ProjectID))
	return http.StatusOK, nil
}

// CreateTopic implements pubsubx.ResourceClient.
func (m *PubSub) CreateTopic(ctx context.Context, cfg *emulatorx.ConnectionConfig, name string) (int, error) {
	if cfg == nil {
		return 0, pubsubx.NewConfigUnsetFailure(pubsubx.OperationCreateTopic)
	}
	m.before(ctx, pubsubx.OperationCreateTopic, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.forcedLocked(pubsubx.OperationCreateTopic); ok {
		return f.status, f.transportFailure(pubsubx.OperationCreateTopic)
	}

	topic, err := messagex.NewTopic(messagex.ShortName(name))
	if err != nil {
		return http.StatusBadRequest, nil
	}
	if !m.project(cfg.ProjectID).addTopic(topic) {
		return http.StatusConflict, nil
	}
	return http.StatusOK, nil
}

// PublishMessage implements pubsubx.ResourceClient.
func (m *PubSub) PublishMessage(ctx context.Context, cfg *emulatorx.ConnectionConfig, req pubsubx.PublishRequest) (int, error) {
	if cfg == nil {
		return 0, pubsubx.NewConfigUnsetFailure(pubsubx.OperationPublish)
	}
	m.before(ctx, pubsubx.OperationPublish, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.forcedLocked(pubsubx.OperationPublish); ok {
		return f.status, f.transportFailure(pubsubx.OperationPublish)
	}

	topic := messagex.TopicFromName(req.TopicShortName)
	p, ok := m.projects[cfg.ProjectID]
	if !ok || !p.hasTopic(topic) {
		return http.StatusNotFound, nil
	}
	p.messages[topic] = append(p.messages[topic], messagex.NewMessage([]byte(req.Payload)))
	return http.StatusOK, nil
}

// ListTopicSubscriptions implements pubsubx.ResourceClient.
func (m *PubSub) ListTopicSubscriptions(ctx context.Context, cfg *emulatorx.ConnectionConfig, topic string) ([]string, error) {
	if cfg == nil {
		return nil, pubsubx.NewConfigUnsetFailure(pubsubx.OperationListTopicSubscriptions)
	}
	m.before(ctx, pubsubx.OperationListTopicSubscriptions, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.forcedLocked(pubsubx.OperationListTopicSubscriptions); ok {
		return nil, f.queryFailure(pubsubx.OperationListTopicSubscriptions)
	}

	t := messagex.TopicFromName(topic)
	p, ok := m.projects[cfg.ProjectID]
	if !ok || !p.hasTopic(t) {
		return nil, pubsubx.NewRemoteRejection(
			pubsubx.OperationListTopicSubscriptions,
			http.StatusNotFound,
			[]byte(fmt.Sprintf("topic %s not found", t.TopicName(cfg.ProjectID))),
		)
	}
	return slices.Clone(p.subscriptions[t]), nil
}

func (m *PubSub) before(ctx context.Context, op string, cfg *emulatorx.ConnectionConfig) {
	m.mu.Lock()
	m.calls[op]++
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	for _, h := range hooks {
		h(ctx, op, cfg)
	}
}

// forcedLocked returns the forced answer for op, unless it is a plain 200.
func (m *PubSub) forcedLocked(op string) (forcedAnswer, bool) {
	f, ok := m.forced[op]
	if !ok || (f.err == nil && f.status == http.StatusOK) {
		return forcedAnswer{}, false
	}
	return f, true
}

func (f forcedAnswer) transportFailure(op string) error {
	if f.err == nil {
		return nil
	}
	return pubsubx.NewTransportFailure(op, f.err)
}

func (f forcedAnswer) queryFailure(op string) error {
	if f.err != nil {
		return pubsubx.NewTransportFailure(op, f.err)
	}
	return pubsubx.NewRemoteRejection(op, f.status, nil)
}

func (m *PubSub) project(projectID string) *memoryProject {
	p, ok := m.projects[projectID]
	if !ok {
		p = &memoryProject{
			subscriptions: map[messagex.Topic][]string{},
			messages:      map[messagex.Topic][]*messagex.Message{},
		}
		m.projects[projectID] = p
	}
	return p
}

func (p *memoryProject) hasTopic(t messagex.Topic) bool {
	return lo.Contains(p.topics, t)
}

func (p *memoryProject) addTopic(t messagex.Topic) bool {
	if p.hasTopic(t) {
		return false
	}
	p.topics = append(p.topics, t)
	return true
}

func (p *memoryProject) removeTopic(t messagex.Topic) bool {
	_, idx, ok := lo.FindIndexOf(p.topics, func(item messagex.Topic) bool {
		return item == t
	})
	if !ok {
		return false
	}
	p.topics = slices.Delete(p.topics, idx, idx+1)
	delete(p.subscriptions, t)
	delete(p.messages, t)
	return true
}
