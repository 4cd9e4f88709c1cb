package pubsubx

import (
	"context"
	"net/http"
	"sync"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/pubsubx/messagex"
)

// fakeClient answers from per project topic lists. A gate set for a project
// holds every ListTopics call of that project until it is closed.
type fakeClient struct {
	mu            sync.Mutex
	topics        map[string][]string
	listErr       error
	gates         map[string]chan struct{}
	started       chan string
	statuses      map[string]int
	mutationErr   error
	deleted       []string
	published     []PublishRequest
	created       []string
	subscriptions map[string][]string
	calls         map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		topics:        map[string][]string{},
		gates:         map[string]chan struct{}{},
		started:       make(chan string, 16),
		statuses:      map[string]int{},
		subscriptions: map[string][]string{},
		calls:         map[string]int{},
	}
}

func (f *fakeClient) setTopics(projectID string, shortNames ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(shortNames))
	for _, s := range shortNames {
		names = append(names, messagex.FullTopicName(projectID, s))
	}
	f.topics[projectID] = names
}

func (f *fakeClient) gate(projectID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[projectID] = g
	return g
}

func (f *fakeClient) ungate(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.gates, projectID)
}

func (f *fakeClient) setStatus(op string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[op] = status
}

func (f *fakeClient) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) ListTopics(ctx context.Context, cfg *emulatorx.ConnectionConfig) (TopicCollection, error) {
	if cfg == nil {
		return nil, NewConfigUnsetFailure(OperationListTopics)
	}

	f.mu.Lock()
	f.calls[OperationListTopics]++
	names := append([]string(nil), f.topics[cfg.ProjectID]...)
	err := f.listErr
	g := f.gates[cfg.ProjectID]
	f.mu.Unlock()

	select {
	case f.started <- cfg.ProjectID:
	default:
	}
	if g != nil {
		<-g
	}

	if err != nil {
		return nil, err
	}
	return NewTopicCollection(names...), nil
}

func (f *fakeClient) mutation(op string) (int, error) {
	f.calls[op]++
	if f.mutationErr != nil {
		return 0, f.mutationErr
	}
	if status, ok := f.statuses[op]; ok {
		return status, nil
	}
	return http.StatusOK, nil
}

func (f *fakeClient) DeleteTopic(_ context.Context, cfg *emulatorx.ConnectionConfig, name string) (int, error) {
	if cfg == nil {
		return 0, NewConfigUnsetFailure(OperationDeleteTopic)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	status, err := f.mutation(OperationDeleteTopic)
	if status == http.StatusOK {
		f.deleted = append(f.deleted, name)
	}
	return status, err
}

func (f *fakeClient) PublishMessage(_ context.Context, cfg *emulatorx.ConnectionConfig, req PublishRequest) (int, error) {
	if cfg == nil {
		return 0, NewConfigUnsetFailure(OperationPublish)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	status, err := f.mutation(OperationPublish)
	if status == http.StatusOK {
		f.published = append(f.published, req)
	}
	return status, err
}

func (f *fakeClient) CreateTopic(_ context.Context, cfg *emulatorx.ConnectionConfig, name string) (int, error) {
	if cfg == nil {
		return 0, NewConfigUnsetFailure(OperationCreateTopic)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	status, err := f.mutation(OperationCreateTopic)
	if status == http.StatusOK {
		f.created = append(f.created, name)
		f.topics[cfg.ProjectID] = append(f.topics[cfg.ProjectID], messagex.FullTopicName(cfg.ProjectID, name))
	}
	return status, err
}

func (f *fakeClient) ListTopicSubscriptions(_ context.Context, cfg *emulatorx.ConnectionConfig, topic string) ([]string, error) {
	if cfg == nil {
		return nil, NewConfigUnsetFailure(OperationListTopicSubscriptions)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OperationListTopicSubscriptions]++
	return f.subscriptions[messagex.FullTopicName(cfg.ProjectID, topic)], nil
}
