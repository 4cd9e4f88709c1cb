package pubsubx

import (
	"github.com/clinia/emulator-console/errorx"
	"github.com/clinia/emulator-console/pubsubx/messagex"
)

// PublishRequest is built for a single publish action and never stored.
type PublishRequest struct {
	TopicShortName string
	Payload        string
}

// NewPublishRequest accepts either a short or a fully qualified topic name.
func NewPublishRequest(topic, payload string) PublishRequest {
	return PublishRequest{
		TopicShortName: messagex.ShortName(topic),
		Payload:        payload,
	}
}

func (r PublishRequest) Validate() error {
	if _, err := messagex.NewTopic(r.TopicShortName); err != nil {
		return errorx.InvalidArgumentErrorf("invalid publish target %q: %s", r.TopicShortName, err.Error())
	}
	return nil
}
