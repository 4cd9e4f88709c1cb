package pubsubx

import (
	"context"

	"github.com/clinia/emulator-console/emulatorx"
)

// Operation names, as used in failures, logs and metrics.
const (
	OperationListTopics             = "list_topics"
	OperationDeleteTopic            = "delete_topic"
	OperationCreateTopic            = "create_topic"
	OperationPublish                = "publish"
	OperationListTopicSubscriptions = "list_topic_subscriptions"
)

// ResourceClient performs the round trips against a pub/sub emulator.
// Every call receives the connection config explicitly and fails with a
// ConfigUnset failure when it is nil. Implementations never retry.
type ResourceClient interface {
	// ListTopics returns the topics of the configured project, in emulator order.
	// A missing or empty list is returned as an empty collection.
	ListTopics(ctx context.Context, cfg *emulatorx.ConnectionConfig) (TopicCollection, error)

	// DeleteTopic deletes a topic given its short or fully qualified name.
	// The returned status code is the only success signal (200); a non-200
	// answer may come along with a RemoteRejection carrying the body.
	DeleteTopic(ctx context.Context, cfg *emulatorx.ConnectionConfig, name string) (int, error)

	// PublishMessage publishes a single message. Same status contract as DeleteTopic.
	PublishMessage(ctx context.Context, cfg *emulatorx.ConnectionConfig, req PublishRequest) (int, error)

	// CreateTopic creates a topic. Same status contract as DeleteTopic.
	CreateTopic(ctx context.Context, cfg *emulatorx.ConnectionConfig, name string) (int, error)

	// ListTopicSubscriptions returns the fully qualified names of the subscriptions attached to a topic.
	ListTopicSubscriptions(ctx context.Context, cfg *emulatorx.ConnectionConfig, topic string) ([]string, error)
}
