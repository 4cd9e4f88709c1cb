package messagex

import (
	"strings"

	"github.com/clinia/emulator-console/errorx"
)

// Topic is the short name of a topic, without its project-scoped prefix.
type Topic string

const (
	pathSeparator           = "/"
	projectsCollection      = "projects"
	topicsCollection        = "topics"
	subscriptionsCollection = "subscriptions"
)

func NewTopic(topic string) (Topic, error) {
	if topic == "" {
		return "", errorx.InvalidArgumentErrorf("topic name cannot be empty")
	}
	if strings.Contains(topic, pathSeparator) {
		return "", errorx.InvalidArgumentErrorf("topic name cannot contain '%s'", pathSeparator)
	}

	return Topic(topic), nil
}

// TopicName returns the fully qualified name of the topic in the given project.
// This should be used when talking to the emulator.
func (t Topic) TopicName(projectID string) string {
	return resourceName(projectID, topicsCollection, string(t))
}

// TopicFromName extracts the short topic from a fully qualified name.
// A short name is returned as is.
func TopicFromName(topicName string) Topic {
	return Topic(ShortName(topicName))
}

// ShortName removes everything up to and including the last path separator.
func ShortName(name string) string {
	i := strings.LastIndex(name, pathSeparator)
	return name[i+1:]
}

// IsFullTopicName reports whether name has the `projects/{project}/topics/{id}` form.
func IsFullTopicName(name string) bool {
	parts := strings.Split(name, pathSeparator)
	return len(parts) == 4 &&
		parts[0] == projectsCollection &&
		parts[1] != "" &&
		parts[2] == topicsCollection &&
		parts[3] != ""
}

// FullTopicName returns name untouched when it already is a fully qualified
// topic name and scopes its last segment to projectID otherwise.
func FullTopicName(projectID, name string) string {
	if IsFullTopicName(name) {
		return name
	}
	return TopicFromName(name).TopicName(projectID)
}

// ScopedTopicName returns the fully qualified name of a topic of projectID.
// A short name is scoped to projectID. A full name must be a topic name of
// projectID, anything else is an invalid argument.
func ScopedTopicName(projectID, name string) (string, error) {
	if !strings.Contains(name, pathSeparator) {
		t, err := NewTopic(name)
		if err != nil {
			return "", err
		}
		return t.TopicName(projectID), nil
	}

	if !IsFullTopicName(name) {
		return "", errorx.InvalidArgumentErrorf("%q is not a topic name", name)
	}
	if p, _ := ProjectFromName(name); p != projectID {
		return "", errorx.InvalidArgumentErrorf("topic %q does not belong to project %q", name, projectID)
	}
	return name, nil
}

// ProjectFromName returns the project of a fully qualified topic name.
func ProjectFromName(name string) (string, bool) {
	if !IsFullTopicName(name) {
		return "", false
	}
	return strings.Split(name, pathSeparator)[1], true
}

// SubscriptionName returns the fully qualified name of a subscription.
func SubscriptionName(projectID, subscription string) string {
	return resourceName(projectID, subscriptionsCollection, ShortName(subscription))
}

func resourceName(projectID, collection, id string) string {
	return strings.Join([]string{projectsCollection, projectID, collection, id}, pathSeparator)
}
